package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	player "github.com/e7canasta/orion-player"
	"github.com/e7canasta/orion-player/internal/notify"
)

const promptSubscriber = "prompt"

// runPrompt reads commands until quit, EOF, Ctrl-C or ctx is done.
func runPrompt(ctx context.Context, c player.Controller, fanout *notify.Fanout) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "player> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("play"),
			readline.PcItem("pause"),
			readline.PcItem("stop"),
			readline.PcItem("status"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return fmt.Errorf("orion-player: prompt: %w", err)
	}
	var closeOnce sync.Once
	closePrompt := func() { closeOnce.Do(func() { rl.Close() }) }
	defer closePrompt()

	events := make(chan notify.Event, 64)
	if err := fanout.Subscribe(promptSubscriber, events); err != nil {
		return fmt.Errorf("orion-player: subscribe: %w", err)
	}
	defer fanout.Unsubscribe(promptSubscriber)

	var last notify.Event
	lastCh := make(chan notify.Event, 1)
	go printEvents(ctx, rl.Stdout(), events, lastCh)

	// Unblock Readline when a signal arrives
	go func() {
		<-ctx.Done()
		closePrompt()
	}()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("orion-player: read: %w", err)
		}

		select {
		case last = <-lastCh:
		default:
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		out := rl.Stdout()
		switch fields[0] {
		case "play":
			if len(fields) != 2 {
				fmt.Fprintln(out, "usage: play <uri>")
				continue
			}
			report(out, c.Play(fields[1]))
		case "pause":
			report(out, c.Pause())
		case "stop":
			report(out, c.Stop())
		case "status":
			printStatus(out, c.State(), last)
		case "quit", "exit":
			return nil
		default:
			fmt.Fprintf(out, "unknown command %q\n", fields[0])
		}
	}
}

func report(out io.Writer, err error) {
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
	}
}

// printEvents prints session events as they arrive and keeps the latest
// position sample in lastCh for the status command.
func printEvents(ctx context.Context, out io.Writer, events <-chan notify.Event, lastCh chan notify.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if ev.Kind == notify.KindPosition {
				select {
				case <-lastCh:
				default:
				}
				lastCh <- ev
				continue
			}
			line := fmt.Sprintf("[%s] %s", ev.Kind, ev.URI)
			if ev.Reason != "" {
				line += " (" + ev.Reason + ")"
			}
			if ev.Err != nil {
				line += ": " + ev.Err.Error()
			}
			fmt.Fprintln(out, line)
		}
	}
}

func printStatus(out io.Writer, s player.SessionState, pos notify.Event) {
	fmt.Fprintf(out, "state: %s\n", s.Phase)
	if s.URI != "" {
		fmt.Fprintf(out, "uri: %s\n", s.URI)
	}
	if s.SessionID == "" || pos.SessionID != s.SessionID {
		return
	}

	position := time.Duration(pos.Position).Truncate(time.Second)
	if pos.Duration < 0 {
		fmt.Fprintf(out, "position: %s\n", position)
		return
	}
	fmt.Fprintf(out, "position: %s / %s\n", position, time.Duration(pos.Duration).Truncate(time.Second))
}
