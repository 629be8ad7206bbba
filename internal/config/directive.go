package config

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/dgnsrekt/disorder/internal/scheduler"
	"github.com/dgnsrekt/disorder/internal/store"
	"github.com/dgnsrekt/disorder/internal/wire"
)

// applyDirectives reads one directive per line from r, tokenizing each
// with the same quoting grammar as the wire protocol (spec.md §6 reuses
// §4.A's quoting rules for config values containing whitespace), and
// folds the result into cfg. Blank lines and lines starting with `#` are
// comments.
func applyDirectives(cfg *Config, r io.Reader) error {
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		args, err := wire.Tokenize(line)
		if err != nil {
			return fmt.Errorf("config: line %d: %w", lineNo, err)
		}
		if len(args) == 0 {
			continue
		}
		if err := applyDirective(cfg, args[0], args[1:]); err != nil {
			return fmt.Errorf("config: line %d: %w", lineNo, err)
		}
	}
	return sc.Err()
}

func applyDirective(cfg *Config, name string, args []string) error {
	switch name {
	case "player":
		return applyPlayer(cfg, args)
	case "collection":
		return applyCollection(cfg, args)
	case "namepart":
		return applyNamepart(cfg, args)
	case "listen":
		return applyListen(cfg, args)
	case "broadcast":
		return applyBroadcast(cfg, args)
	case "broadcast_from":
		return applyBroadcastFrom(cfg, args)
	case "multicast_ttl":
		return applyMulticastTTL(cfg, args)
	case "multicast_loop":
		return applyMulticastLoop(cfg, args)
	case "stopword":
		cfg.Stopwords = append(cfg.Stopwords, args...)
		return nil
	case "history":
		return applyIntField(&cfg.HistoryLength, name, args)
	case "playlist_max":
		return applyIntField(&cfg.PlaylistMax, name, args)
	case "new_bias":
		return applyIntField(&cfg.NewBias, name, args)
	case "banner":
		if len(args) != 1 {
			return fmt.Errorf("%s needs exactly one argument", name)
		}
		cfg.Banner = args[0]
		return nil
	default:
		// Unknown directives are ignored rather than rejected: spec.md §6
		// names "numerous scalars" without enumerating them all, and a
		// forward-compatible parser should not refuse a config file whose
		// extra settings this implementation has no use for yet.
		return nil
	}
}

// applyPlayer handles `player PATTERN MODULE [ARGS...]`, matching the
// `lib/configuration.c` `execraw`/`shell` module shapes: MODULE is the
// decoder command, any further arguments are passed through verbatim
// ahead of the track path the scheduler appends at invocation time.
func applyPlayer(cfg *Config, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("player needs at least 2 arguments")
	}
	cfg.Players = append(cfg.Players, scheduler.PlayerEntry{
		Glob:    args[0],
		Command: args[1],
		Args:    append([]string(nil), args[2:]...),
	})
	return nil
}

func applyCollection(cfg *Config, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("collection needs exactly 3 arguments")
	}
	cfg.Collections = append(cfg.Collections, CollectionRoot{
		Module:   args[0],
		Encoding: args[1],
		Root:     args[2],
	})
	return nil
}

// applyNamepart handles `namepart PART REGEX REPLACEMENT CONTEXT FLAGS`;
// CONTEXT and FLAGS are optional, matching `set_namepart`'s "3 to 5
// arguments" in the original parser. FLAGS may contain "i" for a
// case-insensitive match.
func applyNamepart(cfg *Config, args []string) error {
	if len(args) < 3 || len(args) > 5 {
		return fmt.Errorf("namepart needs between 3 and 5 arguments")
	}
	pattern := args[1]
	if len(args) == 5 && strings.Contains(args[4], "i") {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("namepart: %w", err)
	}
	context := "*"
	if len(args) >= 4 {
		context = args[3]
	}
	cfg.Nameparts = append(cfg.Nameparts, store.NamepartRule{
		Part:        args[0],
		Pattern:     re,
		Replacement: args[2],
		Context:     context,
	})
	return nil
}

func applyListen(cfg *Config, args []string) error {
	switch len(args) {
	case 1:
		cfg.Listen = append(cfg.Listen, ListenAddress{Network: "unix", Address: args[0]})
	case 2:
		cfg.Listen = append(cfg.Listen, ListenAddress{Network: "tcp", Address: args[0] + ":" + args[1]})
	default:
		return fmt.Errorf("listen needs 1 (socket path) or 2 (address port) arguments")
	}
	return nil
}

func applyBroadcast(cfg *Config, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("broadcast needs exactly 2 arguments (address port)")
	}
	if cfg.Broadcast == nil {
		cfg.Broadcast = &BroadcastAddress{}
	}
	cfg.Broadcast.Address = args[0] + ":" + args[1]
	return nil
}

func applyBroadcastFrom(cfg *Config, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("broadcast_from needs exactly 2 arguments (address port)")
	}
	if cfg.Broadcast == nil {
		cfg.Broadcast = &BroadcastAddress{}
	}
	cfg.Broadcast.From = args[0] + ":" + args[1]
	return nil
}

func applyMulticastTTL(cfg *Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("multicast_ttl needs exactly one argument")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("multicast_ttl: %w", err)
	}
	if cfg.Broadcast == nil {
		cfg.Broadcast = &BroadcastAddress{}
	}
	cfg.Broadcast.MulticastTTL = n
	return nil
}

func applyMulticastLoop(cfg *Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("multicast_loop needs exactly one argument")
	}
	b, err := strconv.ParseBool(args[0])
	if err != nil {
		return fmt.Errorf("multicast_loop: %w", err)
	}
	if cfg.Broadcast == nil {
		cfg.Broadcast = &BroadcastAddress{}
	}
	cfg.Broadcast.MulticastLoopback = b
	return nil
}

func applyIntField(field *int, name string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%s needs exactly one argument", name)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*field = n
	return nil
}
