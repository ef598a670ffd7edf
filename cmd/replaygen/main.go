// replaygen writes a deterministic gateway capture, or serves it over TCP
// as a stand-in gateway for local runs of gatewatch.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/gatewatch/internal/logging"
	"github.com/danmuck/gatewatch/internal/protocol/frame"
	"github.com/danmuck/gatewatch/internal/protocol/mep"
)

func main() {
	output := flag.String("output", "capture.bin", "capture file to write")
	listen := flag.String("listen", "", "serve the capture on this address instead of writing a file")
	count := flag.Int("orders", 20, "orders in the scenario")
	session := flag.String("session", "REPLAYGEN", "envelope session token")
	pace := flag.Duration("pace", 100*time.Millisecond, "delay between envelopes when serving")
	heartbeat := flag.Duration("heartbeat", time.Second, "heartbeat cadence after the scenario when serving")
	flag.Parse()

	logging.ConfigureRuntime()
	envs := buildScenario(*session, *count, time.Unix(1700000000, 0))

	if *listen == "" {
		if err := writeCapture(*output, envs); err != nil {
			fmt.Fprintf(os.Stderr, "replaygen: %v\n", err)
			os.Exit(1)
		}
		log.Info().Msgf("replaygen wrote envelopes=%d path=%q", len(envs), *output)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := serve(ctx, *listen, *session, envs, *pace, *heartbeat); err != nil {
		fmt.Fprintf(os.Stderr, "replaygen: %v\n", err)
		os.Exit(1)
	}
}

type scenario struct {
	session string
	seq     uint32
	msgSeq  uint32
	at      time.Time
	envs    []frame.Envelope
}

func (s *scenario) msg(body mep.Body) []byte {
	s.msgSeq++
	s.at = s.at.Add(time.Millisecond)
	raw, err := mep.Encode(mep.Header{Sequence: s.msgSeq, SendTime: uint64(s.at.UnixNano())}, body)
	if err != nil {
		panic(fmt.Sprintf("replaygen: encode %s: %v", body.Kind(), err))
	}
	return raw
}

func (s *scenario) embedded(bodies ...mep.Body) frame.Block {
	b := []byte{frame.TagEmbedded}
	for _, body := range bodies {
		b = append(b, s.msg(body)...)
	}
	return frame.Block(b)
}

func (s *scenario) emit(blocks ...frame.Block) {
	s.seq++
	s.envs = append(s.envs, frame.Envelope{
		Header: frame.Header{Session: s.session, Sequence: s.seq},
		Blocks: blocks,
	})
}

// buildScenario walks count orders through add, modify, trade and cancel.
// Every third modify is rejected and every other order is cancelled after a
// partial fill.
func buildScenario(session string, count int, start time.Time) []frame.Envelope {
	s := &scenario{session: session, at: start}
	s.emit(frame.Block("Lreplaygen session start"))
	for i := 1; i <= count; i++ {
		s.at = start.Add(time.Duration(i) * time.Second)
		s.emit()

		id := uint64(1000 + i)
		token := fmt.Sprintf("RG%06d", i)
		side := mep.SideBuy
		if i%2 == 0 {
			side = mep.SideSell
		}
		qty := int64(10 * i)
		price := mep.Price(100_00000000 + int64(i)*1_000000)

		s.emit(s.embedded(
			mep.OrderAdd{
				InstrumentID: 7,
				OrderType:    mep.OrderTypeLimit,
				TimeInForce:  mep.TimeInForceDay,
				Side:         side,
				Price:        price,
				Quantity:     qty,
				Account:      "ACC1",
				ClientToken:  token,
			},
			mep.OrderAddResponse{OrderID: id, PublicOrderID: id + 5000, DisplayQty: qty, Status: mep.OrdStatusNew, ExecReason: mep.ExecReasonAdd},
		))

		modify := mep.OrderModify{OrderID: id, Price: price + 50000000, Quantity: qty, InstrumentID: 7}
		resp := mep.OrderModifyResponse{OrderID: id, Status: mep.OrdStatusNew, PriorityRetained: false}
		if i%3 == 0 {
			resp = mep.OrderModifyResponse{OrderID: id, Status: mep.OrdStatusRejected, Reason: 101}
		}
		s.emit(s.embedded(modify, resp))

		fill := qty / 2
		s.emit(
			s.embedded(mep.Trade{OrderID: id, TradeID: uint32(i), Price: price, Quantity: fill, LeavesQty: qty - fill}),
			frame.Block(fmt.Sprintf("PACC1 instrument=7 net=%d", fill)),
		)

		if i%2 == 0 {
			s.emit(s.embedded(
				mep.OrderCancel{OrderID: id, InstrumentID: 7, Side: side},
				mep.OrderCancelResponse{OrderID: id, Status: mep.OrdStatusCancelled, ExecReason: mep.ExecReasonCancel},
			))
		}
	}
	s.emit(frame.Block("Lreplaygen session end"))
	return s.envs
}

func writeCapture(path string, envs []frame.Envelope) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, env := range envs {
		if err := frame.WriteEnvelope(w, env); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func serve(ctx context.Context, addr, session string, envs []frame.Envelope, pace, heartbeat time.Duration) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	log.Info().Msgf("replaygen listening addr=%q envelopes=%d", ln.Addr(), len(envs))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go func() {
			defer conn.Close()
			if err := stream(ctx, conn, session, envs, pace, heartbeat); err != nil && ctx.Err() == nil {
				log.Warn().Msgf("replaygen stream ended remote=%s err=%v", conn.RemoteAddr(), err)
			}
		}()
	}
}

func stream(ctx context.Context, conn net.Conn, session string, envs []frame.Envelope, pace, heartbeat time.Duration) error {
	log.Info().Msgf("replaygen client connected remote=%s", conn.RemoteAddr())
	go readCommands(conn)

	for _, env := range envs {
		if err := frame.WriteEnvelope(conn, env); err != nil {
			return err
		}
		if err := sleep(ctx, pace); err != nil {
			return nil
		}
	}
	seq := uint32(len(envs))
	for {
		if err := sleep(ctx, heartbeat); err != nil {
			return nil
		}
		seq++
		if err := frame.WriteEnvelope(conn, frame.Envelope{Header: frame.Header{Session: session, Sequence: seq}}); err != nil {
			return err
		}
	}
}

func readCommands(r io.Reader) {
	br := bufio.NewReader(r)
	for {
		env, err := frame.ReadEnvelope(br)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug().Msgf("replaygen command reader stopped err=%v", err)
			}
			return
		}
		for _, b := range env.Blocks {
			cmd, err := frame.ParseCommand(b)
			if err != nil {
				log.Warn().Msgf("replaygen bad command seq=%d err=%v", env.Header.Sequence, err)
				continue
			}
			log.Info().Msgf("replaygen command tag=%q body=%q seq=%d", cmd.Tag, cmd.Body, env.Header.Sequence)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
