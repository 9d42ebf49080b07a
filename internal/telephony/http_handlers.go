package telephony

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const twimlContentType = "application/xml; charset=utf-8"

// WriteTwiML writes a control document. Twilio only reads the body of a 200.
func WriteTwiML(c *gin.Context, doc string) {
	c.Data(http.StatusOK, twimlContentType, []byte(doc))
}

// Ack acknowledges a status callback with an empty document. It is used on every
// path, failures included, so Twilio never retries a callback we already saw.
func Ack(c *gin.Context) {
	WriteTwiML(c, EmptyResponse())
}

// WriteIntent renders an intent; on a render failure the caller hears a generic
// message instead of a Twilio application error.
func WriteIntent(c *gin.Context, in Intent, opts InstructionOptions) error {
	doc, err := Build(in, opts)
	if err != nil {
		fallback, _ := Build(Hangup(msgUnavailable), opts)
		WriteTwiML(c, fallback)
		return err
	}
	WriteTwiML(c, doc)
	return nil
}
