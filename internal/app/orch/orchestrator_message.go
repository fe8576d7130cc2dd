package orch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dkeye/Babel/internal/app"
	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
	"github.com/dkeye/Babel/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	pathText  = "text"
	pathVoice = "voice"
)

// FanoutResult counts per-recipient outcomes of one routed message.
type FanoutResult struct {
	Recipients    int
	Delivered     int // includes Fallback
	Fallback      int
	Skipped       int
	Undeliverable int
}

type fanoutCounter struct {
	delivered, fallback, skipped, undeliverable atomic.Int64
}

func (c *fanoutCounter) result(recipients int) FanoutResult {
	return FanoutResult{
		Recipients:    recipients,
		Delivered:     int(c.delivered.Load()),
		Fallback:      int(c.fallback.Load()),
		Skipped:       int(c.skipped.Load()),
		Undeliverable: int(c.undeliverable.Load()),
	}
}

// RouteText delivers msg to every member present when the call starts, the
// sender included, each translated to that member's language. A failed
// translation falls back to the original text.
func (o *Orchestrator) RouteText(ctx context.Context, msg domain.TextMessage) FanoutResult {
	members := o.Rooms.MembersOf(msg.Room)
	ctx, span := tracer.Start(ctx, "orch.route_text", trace.WithAttributes(
		attribute.String("room", string(msg.Room)),
		attribute.Int("recipients", len(members)),
	))
	defer span.End()
	o.Metrics.Fanout(pathText)

	var c fanoutCounter
	o.fanout(members, func(m domain.MemberEntry) { o.textTo(ctx, msg, m.ID, &c) })

	res := c.result(len(members))
	log.Debug().Str("module", "orch").Str("room", string(msg.Room)).Str("from", string(msg.SenderID)).
		Int("recipients", res.Recipients).Int("delivered", res.Delivered).Int("fallback", res.Fallback).
		Msg("text routed")
	return res
}

// RouteVoice translates and synthesizes per recipient. Any failure drops that
// recipient's delivery; there is no untranslated audio fallback.
func (o *Orchestrator) RouteVoice(ctx context.Context, msg domain.VoiceMessage) FanoutResult {
	members := o.Rooms.MembersOf(msg.Room)
	ctx, span := tracer.Start(ctx, "orch.route_voice", trace.WithAttributes(
		attribute.String("room", string(msg.Room)),
		attribute.Int("recipients", len(members)),
	))
	defer span.End()
	o.Metrics.Fanout(pathVoice)

	var c fanoutCounter
	o.fanout(members, func(m domain.MemberEntry) { o.voiceTo(ctx, msg, m.ID, &c) })

	res := c.result(len(members))
	log.Debug().Str("module", "orch").Str("room", string(msg.Room)).Str("from", string(msg.SenderID)).
		Int("recipients", res.Recipients).Int("delivered", res.Delivered).Int("skipped", res.Skipped).
		Msg("voice routed")
	return res
}

// fanout runs one task per member and waits for all of them. A panicking task
// is recovered and logged; the other tasks are unaffected.
func (o *Orchestrator) fanout(members []domain.MemberEntry, task func(domain.MemberEntry)) {
	var wg conc.WaitGroup
	for _, m := range members {
		wg.Go(func() { task(m) })
	}
	if r := wg.WaitAndRecover(); r != nil {
		log.Error().Str("module", "orch").Str("panic", r.String()).Msg("recipient task panicked")
	}
}

func (o *Orchestrator) textTo(ctx context.Context, msg domain.TextMessage, to domain.MemberID, c *fanoutCounter) {
	lang := o.Rooms.LanguageOf(to)
	translated, err := o.translate(ctx, msg.Text, lang)
	fallback := err != nil
	if fallback {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(to)).Str("lang", string(lang)).Msg("translation failed, delivering original text")
		translated = msg.Text
	}
	ev := domain.TextDelivered{
		Room:           msg.Room,
		SenderID:       msg.SenderID,
		SenderName:     msg.SenderName,
		OriginalText:   msg.Text,
		TranslatedText: translated,
	}
	if !o.deliver(pathText, to, ev, c) {
		return
	}
	if fallback {
		c.fallback.Add(1)
		o.Metrics.Delivery(pathText, metrics.OutcomeFallback)
		return
	}
	o.Metrics.Delivery(pathText, metrics.OutcomeDelivered)
}

func (o *Orchestrator) voiceTo(ctx context.Context, msg domain.VoiceMessage, to domain.MemberID, c *fanoutCounter) {
	lang := o.Rooms.LanguageOf(to)
	translated, err := o.translate(ctx, msg.SourceText, lang)
	if err != nil {
		o.skipVoice(to, lang, "translate", err, c)
		return
	}
	audio, err := o.synthesize(ctx, translated, msg.Voice)
	if err != nil {
		o.skipVoice(to, lang, "synthesize", err, c)
		return
	}
	ev := domain.VoiceDelivered{
		Room:       msg.Room,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Audio:      audio,
	}
	if o.deliver(pathVoice, to, ev, c) {
		o.Metrics.Delivery(pathVoice, metrics.OutcomeDelivered)
	}
}

func (o *Orchestrator) skipVoice(to domain.MemberID, lang domain.LanguageCode, stage string, err error, c *fanoutCounter) {
	c.skipped.Add(1)
	o.Metrics.Delivery(pathVoice, metrics.OutcomeSkipped)
	log.Warn().Err(err).Str("module", "orch").Str("sid", string(to)).Str("lang", string(lang)).Str("stage", stage).Msg("voice delivery skipped")
}

// deliver reports whether the event reached the member's send queue.
func (o *Orchestrator) deliver(path string, to domain.MemberID, ev core.Outbound, c *fanoutCounter) bool {
	err := o.deliverer().Deliver(to, ev)
	switch {
	case err == nil:
		c.delivered.Add(1)
		return true
	case errors.Is(err, core.ErrBackpressure):
		o.Metrics.Delivery(path, metrics.OutcomeDropped)
	default:
		o.Metrics.Delivery(path, metrics.OutcomeUndeliverable)
	}
	c.undeliverable.Add(1)
	if !errors.Is(err, app.ErrNotConnected) {
		log.Debug().Err(err).Str("module", "orch").Str("sid", string(to)).Msg("delivery failed")
	}
	return false
}

// recoverCall turns a panic inside a collaborator call into an error so the
// recipient takes the same path as any other failed call.
func recoverCall(call string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s panicked: %v", call, r)
	}
}

func (o *Orchestrator) translate(ctx context.Context, text string, lang domain.LanguageCode) (out string, err error) {
	if o.Translator == nil {
		return "", errors.New("no translator configured")
	}
	ctx, cancel := context.WithTimeout(ctx, o.callTimeout())
	defer cancel()
	ctx, span := tracer.Start(ctx, "translator.translate", trace.WithAttributes(attribute.String("lang", string(lang))))
	defer span.End()

	started := time.Now()
	defer func() {
		o.Metrics.ObserveCall("translate", started, err)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
	}()
	defer recoverCall("translator", &err)
	return o.Translator.Translate(ctx, text, lang)
}

func (o *Orchestrator) synthesize(ctx context.Context, text string, voice domain.VoiceAttributes) (audio []byte, err error) {
	if o.Synth == nil {
		return nil, errors.New("no synthesizer configured")
	}
	ctx, cancel := context.WithTimeout(ctx, o.callTimeout())
	defer cancel()
	ctx, span := tracer.Start(ctx, "synthesizer.synthesize", trace.WithAttributes(attribute.String("gender", voice.Gender)))
	defer span.End()

	started := time.Now()
	defer func() {
		o.Metrics.ObserveCall("synthesize", started, err)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
	}()
	defer recoverCall("synthesizer", &err)
	return o.Synth.Synthesize(ctx, text, voice)
}
