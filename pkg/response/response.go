package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the standard API response structure
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success sends a successful response
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created sends a 201 created response
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    0,
		Message: "created",
		Data:    data,
	})
}

// Error sends an error response
func Error(c *gin.Context, statusCode int, code int, message string) {
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest sends a 400 error response
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, -1, message)
}

// Unauthorized sends a 401 error response
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, -1001, message)
}

// NotFound sends a 404 error response
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, -1003, message)
}

// Conflict sends a 409 error response
func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, -1004, message)
}

// NotReady sends a 503 response for requests whose preconditions are not met yet
func NotReady(c *gin.Context, message string) {
	Error(c, http.StatusServiceUnavailable, -1005, message)
}

// BadGateway sends a 502 response when the analysis backend failed
func BadGateway(c *gin.Context, message string) {
	Error(c, http.StatusBadGateway, -1006, message)
}

// InternalError sends a 500 error response
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, -1, message)
}

// List is the response structure for realtime-backed collections
type List struct {
	Items interface{} `json:"items"`
	Count int         `json:"count"`
}

// SuccessList sends a successful list response
func SuccessList(c *gin.Context, items interface{}, count int) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data: List{
			Items: items,
			Count: count,
		},
	})
}
