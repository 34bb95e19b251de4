// Command mudra-listen receives gesture datagrams and prints the gesture and
// the note the receiver board would play for it. Send it "stop" to end it.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"

	"github.com/ayusman/mudra/internal/notify"
)

func main() {
	parser := argparse.NewParser("mudra-listen", "Print gestures received from a mudra sender")
	port := parser.Int("p", "port", &argparse.Options{Help: "UDP port to listen on", Default: 12345})
	host := parser.String("", "host", &argparse.Options{Help: "Address to bind", Default: ""})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := net.JoinHostPort(*host, fmt.Sprint(*port))
	l, err := notify.Listen(logger, addr, func(msg notify.Message, from net.Addr) {
		fmt.Println(describe(msg))
	})
	if err != nil {
		logger.Errorf("Failed to listen on %s: %v", addr, err)
		os.Exit(1)
	}

	err = l.Serve(ctx)
	st := l.Stats()
	logger.Infof("Received %d datagrams (%d repeated, %d invalid)", st.Received, st.Duplicates, st.Invalid)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

// describe formats a message as "<payload> <name>", followed by the note
// frequency when the payload plays one, and the landmark count when present.
func describe(msg notify.Message) string {
	s := fmt.Sprintf("%s %s", msg.Payload, msg.Payload.Name())
	if f, ok := msg.Payload.NoteFrequency(); ok {
		s += fmt.Sprintf(" %.2f Hz", f)
	} else {
		s += " silent"
	}
	if len(msg.Landmarks) > 0 {
		s += fmt.Sprintf(" [%d landmarks]", len(msg.Landmarks)/2)
	}
	return s
}
