package httpapi

import (
	"callcenter/internal/calls"
	"callcenter/internal/conferences"
	"callcenter/internal/routing"
	"callcenter/internal/telephony"
	"callcenter/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Twilio webhooks. Every handler answers 200 with TwiML: failures are logged and
// counted, never surfaced, so the provider does not retry an event we already saw.

const msgInvalidOption = "Sorry, that is not a valid option."

func (h Handlers) observe(c *gin.Context, kind string, err error) {
	if err != nil {
		logger.FromGin(c).Warn("webhook failed", "kind", kind, "err", err)
	}
	if h.OnWebhook != nil {
		h.OnWebhook(kind, err)
	}
}

func (h Handlers) writeIntent(c *gin.Context, kind string, in telephony.Intent) {
	if err := telephony.WriteIntent(c, in, h.Calls.Instructions()); err != nil {
		h.observe(c, kind+"_render", err)
	}
}

// Voice routes a new inbound call.
func (h Handlers) Voice(c *gin.Context) {
	form, err := telephony.ParseInboundCall(c.Request)
	if err != nil {
		h.observe(c, "voice", err)
		h.writeIntent(c, "voice", telephony.Unavailable())
		return
	}
	ctx := c.Request.Context()

	d, err := h.Router.RouteInbound(ctx)
	if err != nil {
		// The router only fails on directory lookups; queueing still works.
		logger.FromGin(c).Warn("inbound routing failed; queueing", "call_sid", form.CallSid, "err", err)
		d = routing.Decision{Action: routing.ActionQueue, Reason: "routing_error"}
	}
	_, intent, err := h.Calls.AcceptInbound(ctx, calls.InboundCall{
		CallSID: form.CallSid,
		From:    form.From,
		To:      form.To,
		Status:  form.CallStatus,
	}, d.Route())
	h.observe(c, "voice", err)
	if err != nil {
		h.writeIntent(c, "voice", telephony.Unavailable())
		return
	}
	logger.FromGin(c).Info("inbound call routed", "call_sid", form.CallSid, "action", d.Action, "reason", d.Reason)
	h.writeIntent(c, "voice", intent)
}

// CallStatus applies a call progress callback.
func (h Handlers) CallStatus(c *gin.Context) {
	form, err := telephony.ParseCallStatus(c.Request)
	if err == nil {
		_, err = h.Calls.HandleStatusCallback(c.Request.Context(), calls.StatusEvent{
			CallSID:      form.CallSid,
			Status:       form.CallStatus,
			CallDuration: form.CallDuration,
		})
	}
	h.observe(c, "call_status", err)
	telephony.Ack(c)
}

func (h Handlers) RecordingStatus(c *gin.Context) {
	form, err := telephony.ParseRecordingStatus(c.Request)
	if err == nil {
		err = h.Calls.HandleRecordingCallback(c.Request.Context(), calls.RecordingEvent{
			CallSID:      form.CallSid,
			RecordingSID: form.RecordingSid,
			Status:       form.RecordingStatus,
			URL:          form.RecordingURL,
			Duration:     form.RecordingDuration,
		})
	}
	h.observe(c, "recording_status", err)
	telephony.Ack(c)
}

// TransferComplete is the Dial action of a transfer leg.
func (h Handlers) TransferComplete(c *gin.Context) {
	form, err := telephony.ParseDialAction(c.Request)
	if err == nil {
		_, err = h.Calls.HandleTransferResult(c.Request.Context(), form.CallSid, form.DialCallStatus)
	}
	h.observe(c, "transfer_complete", err)
	telephony.Ack(c)
}

// TransferAnswered is the statusCallback of the transfer leg's Client. The form
// describes the new leg; ParentCallSid names the transferred call.
func (h Handlers) TransferAnswered(c *gin.Context) {
	form, err := telephony.ParseCallStatus(c.Request)
	if err == nil {
		_, err = h.Calls.HandleTransferAnswered(c.Request.Context(), form.ParentCallSid, form.CallStatus)
	}
	h.observe(c, "transfer_answered", err)
	telephony.Ack(c)
}

// IVR handles a menu selection. Unknown options replay the menu.
func (h Handlers) IVR(c *gin.Context) {
	form, err := telephony.ParseGather(c.Request)
	if err != nil {
		h.observe(c, "ivr", err)
		h.writeIntent(c, "ivr", telephony.Unavailable())
		return
	}
	ctx := c.Request.Context()
	choice := form.Digits
	if choice == "" {
		choice = form.SpeechResult
	}

	d, _ := h.Router.RouteDigits(ctx, choice)
	if d.Action == routing.ActionIVR {
		in := telephony.IVR()
		in.Preamble = msgInvalidOption
		h.observe(c, "ivr", nil)
		h.writeIntent(c, "ivr", in)
		return
	}
	intent, err := h.Calls.EnterQueue(ctx, form.CallSid, d.Queue)
	h.observe(c, "ivr", err)
	if err != nil {
		// The caller still gets queued; only the local record missed the update.
		intent = telephony.Queue(d.Queue)
	}
	h.writeIntent(c, "ivr", intent)
}

// QueueExit is the Enqueue action: the caller left the queue.
func (h Handlers) QueueExit(c *gin.Context) {
	form, err := telephony.ParseQueue(c.Request)
	if err == nil {
		_, err = h.Calls.HandleQueueExit(c.Request.Context(), calls.QueueEvent{
			CallSID:     form.CallSid,
			Result:      form.QueueResult,
			Position:    form.QueuePosition,
			WaitSeconds: form.QueueTime,
		})
	}
	h.observe(c, "queue_exit", err)
	telephony.Ack(c)
}

// QueueWait is the Enqueue waitUrl, requested while the caller waits.
func (h Handlers) QueueWait(c *gin.Context) {
	form, err := telephony.ParseQueue(c.Request)
	if err != nil {
		h.observe(c, "queue_wait", err)
		h.writeIntent(c, "queue_wait", telephony.QueueWait(0))
		return
	}
	intent, err := h.Calls.HandleQueueWait(c.Request.Context(), calls.QueueEvent{
		CallSID:  form.CallSid,
		Position: form.QueuePosition,
	})
	h.observe(c, "queue_wait", err)
	h.writeIntent(c, "queue_wait", intent)
}

// Resume reconnects a call coming off hold to its agent.
func (h Handlers) Resume(c *gin.Context) {
	callSID := c.PostForm("CallSid")
	if callSID == "" {
		callSID = c.Query("CallSid")
	}
	h.observe(c, "resume", nil)
	h.writeIntent(c, "resume", h.Calls.ResumeIntent(c.Request.Context(), callSID))
}

func (h Handlers) ConferenceStatus(c *gin.Context) {
	form, err := telephony.ParseConferenceEvent(c.Request)
	if err == nil {
		_, err = h.Conferences.HandleEvent(c.Request.Context(), conferences.Event{
			ConferenceSID: form.ConferenceSid,
			FriendlyName:  form.FriendlyName,
			Kind:          form.StatusCallbackEvent,
			CallSID:       form.CallSid,
			Muted:         form.Muted,
			Hold:          form.Hold,
		})
	}
	h.observe(c, "conference_status", err)
	telephony.Ack(c)
}
