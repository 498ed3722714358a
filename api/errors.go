package api

import (
	"github.com/evalgo/rserv/rerr"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type errorBody struct {
	Message    string   `json:"message"`
	StatusCode int      `json:"status_code"`
	Details    []string `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error errorBody      `json:"error"`
	Links map[string]string `json:"_links"`
}

// writeError renders err as the {"error":{...},"_links":{"self"}} envelope.
// An unrecognised error is logged and surfaced as a generic internal fault
// rather than leaking its message to the client.
func writeError(c echo.Context, err error, log *logrus.Logger) {
	re, ok := rerr.As(err)
	if !ok {
		log.WithError(err).WithField("path", c.Request().URL.Path).Error("unhandled error")
		re = rerr.New(rerr.Internal, "internal error")
	}

	body := errorEnvelope{
		Error: errorBody{
			Message:    re.Message,
			StatusCode: re.Kind.Status(),
			Details:    re.Details,
		},
		Links: map[string]string{"self": c.Request().URL.Path},
	}

	if writeErr := c.JSON(re.Kind.Status(), body); writeErr != nil {
		log.WithError(writeErr).Error("write error response")
	}
}

func fail(c echo.Context, log *logrus.Logger, err error) error {
	writeError(c, err, log)
	return nil
}
