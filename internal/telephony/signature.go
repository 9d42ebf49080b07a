package telephony

import (
	"net/http"
	"strings"

	"callcenter/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/twilio/twilio-go/client"
)

const signatureHeader = "X-Twilio-Signature"

// RequireTwilioSignature rejects webhook requests whose X-Twilio-Signature does not
// match the request. The signed URL is rebuilt from baseURL because the service
// usually runs behind a proxy that rewrites scheme and host.
//
// An empty authToken disables the check (local development).
func RequireTwilioSignature(authToken, baseURL string) gin.HandlerFunc {
	if authToken == "" {
		return func(c *gin.Context) { c.Next() }
	}
	validator := client.NewRequestValidator(authToken)
	baseURL = strings.TrimRight(baseURL, "/")

	return func(c *gin.Context) {
		sig := c.GetHeader(signatureHeader)
		if sig == "" {
			logger.FromGin(c).Warn("twilio webhook without signature", "path", c.Request.URL.Path)
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}

		url := baseURL + c.Request.URL.RequestURI()
		if !validator.Validate(url, formParams(c.Request), sig) {
			logger.FromGin(c).Warn("twilio signature mismatch", "path", c.Request.URL.Path)
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

func formParams(r *http.Request) map[string]string {
	out := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
