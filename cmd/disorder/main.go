// Command disorder is the line-protocol CLI client: it connects to a
// disorderd instance, completes the challenge/response handshake, sends
// one command built from its positional arguments, and prints the
// response.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/dgnsrekt/disorder/internal/auth"
	"github.com/dgnsrekt/disorder/internal/wire"
)

func main() {
	var (
		addr     = pflag.StringP("server", "s", "localhost:9696", "disorderd address, host:port or /path/to/socket")
		unix     = pflag.Bool("unix", false, "treat --server as a unix socket path")
		username = pflag.StringP("user", "u", "", "username (env DISORDER_USER)")
		password = pflag.StringP("password", "p", "", "password (env DISORDER_PASSWORD)")
		version  = pflag.Bool("version", false, "print version and exit")
	)
	pflag.Parse()

	if *version {
		fmt.Println("disorder (dgnsrekt/disorder)")
		return
	}

	if *username == "" {
		*username = os.Getenv("DISORDER_USER")
	}
	if *password == "" {
		*password = os.Getenv("DISORDER_PASSWORD")
	}
	if *username == "" {
		fmt.Fprintln(os.Stderr, "disorder: no username given (-u or DISORDER_USER)")
		os.Exit(2)
	}

	if pflag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: disorder [flags] VERB [ARGS...]")
		os.Exit(2)
	}

	network := "tcp"
	if *unix {
		network = "unix"
	}

	if err := run(network, *addr, *username, *password, pflag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "disorder:", err)
		os.Exit(1)
	}
}

// client is the minimal request/response half of the protocol a CLI
// invocation needs: connect, authenticate once, send one command, print
// the reply, disconnect.
type client struct {
	nc     net.Conn
	reader *wire.Reader
	writer *wire.Writer
}

func dial(network, addr string) (*client, error) {
	nc, err := net.Dial(network, addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s %s: %w", network, addr, err)
	}
	return &client{nc: nc, reader: wire.NewReader(nc), writer: wire.NewWriter(nc)}, nil
}

func (c *client) close() { c.nc.Close() }

// readResponse reads one response line and splits it into status code and
// quoted-string arguments, per spec.md §4.A.
func (c *client) readResponse() (wire.Status, []string, error) {
	line, err := c.reader.ReadLine()
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}
	if len(line) < 3 {
		return 0, nil, fmt.Errorf("malformed response line %q", line)
	}
	code, err := strconv.Atoi(line[:3])
	if err != nil {
		return 0, nil, fmt.Errorf("malformed response line %q", line)
	}
	rest := strings.TrimSpace(line[3:])
	var args []string
	if rest != "" {
		args, err = wire.Tokenize(rest)
		if err != nil {
			// Not every reply quotes its message (greeting args do; most
			// single-line OK replies are a bare human-readable string).
			args = []string{rest}
		}
	}
	return wire.Status(code), args, nil
}

// handshake reads the greeting, computes the challenge response and logs
// in, returning the granted rights string for display.
func (c *client) handshake(username, password string) (string, error) {
	_, greetArgs, err := c.readResponse()
	if err != nil {
		return "", fmt.Errorf("reading greeting: %w", err)
	}
	if len(greetArgs) != 3 {
		return "", fmt.Errorf("malformed greeting: %v", greetArgs)
	}
	algo, nonceHex := greetArgs[1], greetArgs[2]

	nonce, err := wire.HexDecode(nonceHex)
	if err != nil {
		return "", fmt.Errorf("decoding challenge nonce: %w", err)
	}
	ch := &auth.Challenge{Algorithm: algo, Nonce: nonce}
	response, err := ch.Response(password)
	if err != nil {
		return "", fmt.Errorf("computing challenge response: %w", err)
	}

	if err := c.sendCommand("user", []string{username, response}); err != nil {
		return "", err
	}
	status, args, err := c.readResponse()
	if err != nil {
		return "", err
	}
	if status != wire.StatusAuthOK {
		msg := ""
		if len(args) > 0 {
			msg = args[len(args)-1]
		}
		return "", fmt.Errorf("authentication failed: %s", msg)
	}
	if len(args) < 2 {
		return "", nil
	}
	return args[1], nil
}

func (c *client) sendCommand(verb string, args []string) error {
	return c.writer.WriteLine(wire.QuoteArgs(append([]string{verb}, args...)))
}

func run(network, addr, username, password string, verbAndArgs []string) error {
	c, err := dial(network, addr)
	if err != nil {
		return err
	}
	defer c.close()

	if _, err := c.handshake(username, password); err != nil {
		return err
	}

	verb, args := verbAndArgs[0], verbAndArgs[1:]
	if err := c.sendCommand(verb, args); err != nil {
		return fmt.Errorf("sending command: %w", err)
	}

	status, respArgs, err := c.readResponse()
	if err != nil {
		return err
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	fmt.Fprintf(out, "%03d %s\n", int(status), strings.Join(respArgs, " "))
	if status.HasBody() {
		body, err := c.reader.ReadBody()
		if err != nil {
			return fmt.Errorf("reading body: %w", err)
		}
		for _, line := range body {
			fmt.Fprintln(out, line)
		}
	}
	if status.HasStream() {
		for {
			line, err := c.reader.ReadLine()
			if err != nil {
				return nil
			}
			fmt.Fprintln(out, line)
			out.Flush()
		}
	}
	if status.Class() != 2 {
		out.Flush()
		os.Exit(1)
	}
	return nil
}
