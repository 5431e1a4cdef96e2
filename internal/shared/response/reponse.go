package response

import (
	"github.com/gin-gonic/gin"
)

// Response is the envelope of every JSON reply. Failures expose a stable
// machine code next to a human message; clients branch on the code only.
type Response struct {
	Ok      bool        `json:"ok"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, Response{
		Ok:   true,
		Data: data,
	})
}

func Fail(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, Response{
		Ok:      false,
		Code:    code,
		Message: message,
	})
}

// Common failure responses
func BadRequest(c *gin.Context, code, message string) {
	Fail(c, 400, code, message)
}

func Unauthorized(c *gin.Context, message string) {
	Fail(c, 401, "unauthorized", message)
}

func Forbidden(c *gin.Context, code, message string) {
	Fail(c, 403, code, message)
}

func NotFound(c *gin.Context, code, message string) {
	Fail(c, 404, code, message)
}

func InternalServerError(c *gin.Context, code, message string) {
	Fail(c, 500, code, message)
}
