package arq

import (
	"context"
	"log/slog"
)

// LevelTrace sits below slog.LevelDebug, for the highest-volume per-segment
// diagnostics (every send/retransmit/ack). Most deployments never enable it.
const LevelTrace = slog.LevelDebug - 2

func (s *Session) logenabled(lvl slog.Level) bool {
	return s.log != nil && s.log.Handler().Enabled(context.Background(), lvl)
}

func (s *Session) logattrs(lvl slog.Level, msg string, attrs ...slog.Attr) {
	if s.log == nil {
		return
	}
	s.log.LogAttrs(context.Background(), lvl, msg, attrs...)
}

func (s *Session) debug(msg string, attrs ...slog.Attr) {
	s.logattrs(slog.LevelDebug, msg, attrs...)
}

func (s *Session) trace(msg string, attrs ...slog.Attr) {
	s.logattrs(LevelTrace, msg, attrs...)
}

func (s *Session) logerr(msg string, attrs ...slog.Attr) {
	s.logattrs(slog.LevelError, msg, attrs...)
}

func (s *Session) traceSnd(msg string) {
	if !s.logenabled(LevelTrace) {
		return
	}
	s.trace(msg,
		slog.Uint64("snd.una", uint64(s.sndUna)),
		slog.Uint64("snd.nxt", uint64(s.sndNxt)),
		slog.Int("snd.buf", len(s.sndBuf)),
		slog.Int("snd.que", len(s.sndQue)),
	)
}

func (s *Session) traceRcv(msg string) {
	if !s.logenabled(LevelTrace) {
		return
	}
	s.trace(msg,
		slog.Uint64("rcv.nxt", uint64(s.rcvNxt)),
		slog.Int("rcv.buf", len(s.rcvBuf)),
		slog.Int("rcv.que", len(s.rcvQue)),
	)
}

func (s *Session) traceSeg(msg string, seg *Segment) {
	if !s.logenabled(LevelTrace) {
		return
	}
	s.trace(msg,
		slog.String("cmd", seg.Cmd.String()),
		slog.Uint64("sn", uint64(seg.SN)),
		slog.Uint64("una", uint64(seg.Una)),
		slog.Int("len", len(seg.Data)),
		slog.Int("frg", int(seg.Frg)),
	)
}
