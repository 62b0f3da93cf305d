// Command arqecho is a minimal client/server exercising the arq transport
// end to end over real UDP sockets: the server echoes back every message it
// receives, the client sends lines read from stdin and prints what comes
// back.
package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/xid"

	"github.com/flowmesh/arq"
	"github.com/flowmesh/arq/transport/udp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		listen     = flag.Bool("listen", false, "run as echo server instead of client")
		addr       = flag.String("addr", "127.0.0.1:9700", "address to listen on, or dial to")
		conv       = flag.Uint("conv", 0, "conversation id; 0 generates one from a random id")
		reusePort  = flag.Bool("reuseport", false, "set SO_REUSEPORT on the listening socket")
		verbose    = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	convID := uint32(*conv)
	if convID == 0 {
		id := xid.New()
		// The first four bytes of an xid are its creation time in seconds;
		// the last four hold a randomly seeded counter.
		convID = binary.BigEndian.Uint32(id[8:12])
	}

	if *listen {
		return runServer(*addr, *reusePort, log)
	}
	return runClient(*addr, convID, log)
}

func runServer(addr string, reusePort bool, log *slog.Logger) error {
	pc, err := udp.ListenUDP("udp", addr, udp.ListenConfig{ReusePort: reusePort})
	if err != nil {
		return err
	}
	defer pc.Close()
	log.Info("listening", slog.String("addr", pc.LocalAddr().String()))

	ln := udp.NewListener(pc, func(conv uint32, remote net.Addr) *arq.Session {
		log.Info("new conversation", slog.Uint64("conv", uint64(conv)), slog.String("remote", remote.String()))
		return arq.NewSession(conv, arq.Config{NoDelay: true, Interval: 20})
	}, log)

	go tickListener(ln)
	go echoLoop(ln, log)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- ln.Serve() }()

	select {
	case <-sig:
		return nil
	case err := <-errCh:
		return err
	}
}

func tickListener(ln *udp.Listener) {
	start := time.Now()
	t := time.NewTicker(10 * time.Millisecond)
	defer t.Stop()
	for now := range t.C {
		ln.UpdateAll(uint32(now.Sub(start).Milliseconds()))
	}
}

// echoLoop periodically pulls deliverable messages from every tracked
// session and writes them straight back to their sender.
func echoLoop(ln *udp.Listener, log *slog.Logger) {
	buf := make([]byte, 64*1024)
	t := time.NewTicker(10 * time.Millisecond)
	defer t.Stop()
	for range t.C {
		ln.ForEach(func(conv uint32, session *arq.Session) {
			for {
				n, err := session.Recv(buf)
				if err != nil {
					return
				}
				if err := session.Send(buf[:n]); err != nil {
					log.Error("echo failed", slog.Uint64("conv", uint64(conv)), slog.String("err", err.Error()))
				}
			}
		})
	}
}

func runClient(addr string, conv uint32, log *slog.Logger) error {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	pc, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return err
	}
	defer pc.Close()

	session := arq.NewSession(conv, arq.Config{NoDelay: true, Interval: 20})
	conn, err := udp.Dial(pc, raddr, udp.Config{Session: session, Logger: log})
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Info("dialed", slog.String("remote", addr), slog.Uint64("conv", uint64(conv)))

	go func() {
		buf := make([]byte, 64*1024)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			fmt.Printf("< %s\n", buf[:n])
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if _, err := conn.Write([]byte(line)); err != nil {
			log.Error("write failed", slog.String("err", err.Error()))
		}
	}
	return scanner.Err()
}
