package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"medibot/internal/client"
	"medibot/internal/domain"
)

// chatCLI mantiene el estado de la consola conversacional.
type chatCLI struct {
	api      *client.APIClient
	flow     *client.Flow
	relay    *client.RelayConn
	baseURL  string
	reader   *bufio.Reader
	sessions []domain.Session
	current  string
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	baseURL := os.Getenv("MEDIBOT_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:5001"
	}

	api := client.NewAPIClient(baseURL)
	cli := &chatCLI{
		api:     api,
		flow:    client.NewFlow(api),
		baseURL: baseURL,
		reader:  bufio.NewReader(os.Stdin),
	}

	ctx := context.Background()
	printLines(cli.flow.Greeting())

	for {
		if !cli.flow.Authenticated() {
			if err := cli.stepOnboarding(ctx); err != nil {
				fmt.Println("bye!")
				return
			}
			if cli.flow.Authenticated() {
				if err := cli.enterChat(ctx); err != nil {
					fmt.Printf("⚠️ %v\n", err)
					return
				}
			}
			continue
		}

		if err := cli.stepChat(ctx); err != nil {
			cli.teardown()
			fmt.Println("bye!")
			return
		}
	}
}

// stepOnboarding pide una entrada y la pasa a la maquina de estados.
func (c *chatCLI) stepOnboarding(ctx context.Context) error {
	input, err := c.readInput(c.flow.State().Secret())
	if err != nil {
		return err
	}
	printLines(c.flow.Submit(ctx, input))
	return nil
}

// enterChat prepara la sesion autenticada: token, historial y relay.
func (c *chatCLI) enterChat(ctx context.Context) error {
	c.api.SetToken(c.flow.AccessTokens().AccessToken)

	sessions, err := c.api.ListSessions(ctx, c.flow.UserID())
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	c.sessions = sessions
	if len(sessions) > 0 {
		// Las sesiones llegan de mas nueva a mas vieja.
		c.current = sessions[0].ID
		if err := c.printSession(ctx, c.current); err != nil {
			return err
		}
	}

	relay, err := client.DialRelay(ctx, c.baseURL, c.flow.AccessTokens().AccessToken)
	if err != nil {
		return fmt.Errorf("connect relay: %w", err)
	}
	c.relay = relay

	fmt.Println("Commands: /new /list /open <n> /rename <n> <title> /delete <n> /logout /quit")
	return nil
}

// stepChat lee una linea de chat o un comando y la procesa.
func (c *chatCLI) stepChat(ctx context.Context) error {
	fmt.Print("you> ")
	input, err := c.readInput(false)
	if err != nil {
		return err
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}

	if strings.HasPrefix(input, "/") {
		return c.runCommand(ctx, input)
	}

	if c.current == "" {
		title := input
		if len(title) > 30 {
			title = title[:30]
		}
		session, err := c.api.StartSession(ctx, c.flow.UserID(), title)
		if err != nil {
			fmt.Printf("⚠️ could not start session: %v\n", err)
			return nil
		}
		c.current = session.ID
		c.sessions = append([]domain.Session{session}, c.sessions...)
	}

	if err := c.relay.Send(ctx, c.current, input); err != nil {
		fmt.Printf("⚠️ send failed: %v\n", err)
		return nil
	}
	reply, err := c.relay.Recv(ctx)
	if err != nil {
		fmt.Printf("⚠️ %v\n", err)
		return nil
	}
	fmt.Printf("bot> %s\n", reply)
	return nil
}

func (c *chatCLI) runCommand(ctx context.Context, input string) error {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/quit", "/exit":
		return fmt.Errorf("quit")
	case "/logout":
		c.teardown()
		c.flow.Logout()
		c.api.SetToken("")
		c.sessions = nil
		c.current = ""
		printLines(c.flow.Greeting())
	case "/new":
		c.current = ""
		fmt.Println("🆕 New chat. Your next message starts a session.")
	case "/list":
		if len(c.sessions) == 0 {
			fmt.Println("(no sessions yet)")
			return nil
		}
		for i, s := range c.sessions {
			marker := " "
			if s.ID == c.current {
				marker = "*"
			}
			fmt.Printf("%s %d. %s\n", marker, i+1, s.Title)
		}
	case "/open":
		s, ok := c.pickSession(fields)
		if !ok {
			return nil
		}
		c.current = s.ID
		if err := c.printSession(ctx, s.ID); err != nil {
			fmt.Printf("⚠️ %v\n", err)
		}
	case "/rename":
		s, ok := c.pickSession(fields)
		if !ok {
			return nil
		}
		title := strings.Join(fields[2:], " ")
		if title == "" {
			fmt.Println("usage: /rename <n> <title>")
			return nil
		}
		updated, err := c.api.RenameSession(ctx, s.ID, title)
		if err != nil {
			fmt.Printf("⚠️ rename failed: %v\n", err)
			return nil
		}
		for i := range c.sessions {
			if c.sessions[i].ID == updated.ID {
				c.sessions[i] = updated
			}
		}
		fmt.Println("✏️ Renamed.")
	case "/delete":
		s, ok := c.pickSession(fields)
		if !ok {
			return nil
		}
		if err := c.api.DeleteSession(ctx, s.ID); err != nil {
			fmt.Printf("⚠️ delete failed: %v\n", err)
			return nil
		}
		kept := c.sessions[:0]
		for _, existing := range c.sessions {
			if existing.ID != s.ID {
				kept = append(kept, existing)
			}
		}
		c.sessions = kept
		if c.current == s.ID {
			c.current = ""
		}
		fmt.Println("🗑️ Deleted session.")
	default:
		fmt.Println("unknown command:", fields[0])
	}
	return nil
}

func (c *chatCLI) pickSession(fields []string) (domain.Session, bool) {
	if len(fields) < 2 {
		fmt.Println("usage:", fields[0], "<n>")
		return domain.Session{}, false
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 1 || n > len(c.sessions) {
		fmt.Println("no such session, see /list")
		return domain.Session{}, false
	}
	return c.sessions[n-1], true
}

func (c *chatCLI) printSession(ctx context.Context, sessionID string) error {
	messages, err := c.api.ListMessages(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	for _, m := range messages {
		if m.Sender == domain.SenderUser {
			fmt.Printf("you> %s\n", m.Body)
		} else {
			fmt.Printf("bot> %s\n", m.Body)
		}
	}
	return nil
}

// readInput lee una linea; en pasos secretos no hace eco en pantalla.
func (c *chatCLI) readInput(secret bool) (string, error) {
	if secret && term.IsTerminal(int(syscall.Stdin)) {
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *chatCLI) teardown() {
	if c.relay != nil {
		_ = c.relay.Close()
		c.relay = nil
	}
}

func printLines(lines []string) {
	for _, line := range lines {
		fmt.Println(line)
	}
}
