package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"saltyrtc/internal/domain"
	"saltyrtc/internal/protocol/state"
	"saltyrtc/internal/protocol/task"
	"saltyrtc/internal/services/session"
	"saltyrtc/internal/tasks/chat"
)

func newChatTask(nickname, fallback string) (*chat.Task, error) {
	if nickname == "" {
		nickname = wire.Config.Client.Nickname
	}
	if nickname == "" {
		nickname = fallback
	}
	return chat.New(nickname, wire.Logs.GetLogger("chat"))
}

func tasksOf(ct *chat.Task) []task.Task { return []task.Task{ct} }

func stateReporter(out io.Writer) func(state.SignalingState) {
	return func(s state.SignalingState) {
		switch s {
		case state.PeerHandshake:
			fmt.Fprintln(out, "Connected to server, waiting for peer")
		case state.Task:
			fmt.Fprintln(out, "Handshake done")
		}
	}
}

// runChat drives the session until either side closes it. Lines from stdin
// are sent as messages; /nick <name> changes the nickname and /quit leaves.
func runChat(cmd *cobra.Command, sess *session.Session, ct *chat.Task) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	wire.Background(ctx)

	out := cmd.OutOrStdout()
	runErr := make(chan error, 1)
	go func() { runErr <- sess.Client.Run(ctx) }()
	go printEvents(out, ct)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(cmd.InOrStdin())
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case err := <-runErr:
			return err
		case line, ok := <-lines:
			if !ok {
				lines = nil
				_ = sess.Client.Close(domain.CloseNormal)
				continue
			}
			if err := handleLine(out, sess, ct, line); err != nil {
				fmt.Fprintf(out, "! %v\n", err)
			}
		}
	}
}

func handleLine(out io.Writer, sess *session.Session, ct *chat.Task, line string) error {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return nil
	case line == "/quit":
		return sess.Client.Close(domain.CloseNormal)
	case strings.HasPrefix(line, "/nick "):
		nick := strings.TrimSpace(strings.TrimPrefix(line, "/nick "))
		if err := ct.ChangeNickname(nick); err != nil {
			return err
		}
		fmt.Fprintf(out, "* You are now %s\n", nick)
		return nil
	}
	err := ct.SendMessage(line)
	if errors.Is(err, chat.ErrNotStarted) {
		return errors.New("not connected to a peer yet")
	}
	if err == nil {
		fmt.Fprintf(out, "%s> %s\n", ct.Nickname(), line)
	}
	return err
}

func printEvents(out io.Writer, ct *chat.Task) {
	for ev := range ct.Events() {
		switch ev.Kind {
		case chat.EventReady:
			fmt.Fprintf(out, "=== Chatting with %s. /nick <name> renames, /quit leaves ===\n", ev.From)
		case chat.EventMessage:
			fmt.Fprintf(out, "%s> %s\n", ev.From, ev.Text)
		case chat.EventNickChange:
			fmt.Fprintf(out, "* %s is now %s\n", ev.From, ev.Text)
		case chat.EventApplication:
			fmt.Fprintf(out, "* application data from %s: %q\n", ev.From, ev.Text)
		case chat.EventClosed:
			fmt.Fprintf(out, "* Session closed: %s\n", ev.Code)
		}
	}
}
