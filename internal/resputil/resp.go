package resputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/raids-lab/triad/pkg/workflow"
)

// Response is the uniform envelope of every endpoint.
type Response[T any] struct {
	Code ErrorCode `json:"code"`
	Data T         `json:"data"`
	Msg  string    `json:"msg"`
}

func wrapResponse(c *gin.Context, httpCode int, msg string, data any, code ErrorCode) {
	c.JSON(httpCode, gin.H{
		"code": code,
		"data": data,
		"msg":  msg,
	})
}

func Success(c *gin.Context, data any) {
	wrapResponse(c, http.StatusOK, "", data, OK)
}

func Error(c *gin.Context, msg string, errorCode ErrorCode) {
	wrapResponse(c, http.StatusInternalServerError, msg, nil, errorCode)
}

func HTTPError(c *gin.Context, httpCode int, msg string, errorCode ErrorCode) {
	wrapResponse(c, httpCode, msg, nil, errorCode)
}

// workflowCodes maps typed workflow error kinds to stable response codes.
var workflowCodes = map[workflow.Kind]ErrorCode{
	workflow.KindInvalidTransition:      InvalidTransition,
	workflow.KindInvalidState:           InvalidState,
	workflow.KindCapacityExceeded:       CapacityExceeded,
	workflow.KindEscrowNotFunded:        EscrowNotFunded,
	workflow.KindIrreversibleState:      IrreversibleState,
	workflow.KindOfferExpired:           OfferExpired,
	workflow.KindInvalidEscalation:      InvalidEscalation,
	workflow.KindConcurrentModification: ConcurrentModification,
	workflow.KindSubjectNotActive:       SubjectNotActive,
	workflow.KindDisputeSuspended:       DisputeSuspended,
	workflow.KindNotFound:               NotFound,
}

// WorkflowError translates a workflow core error into the response envelope.
// Guard violations are client errors (409/404), everything else is a 500.
func WorkflowError(c *gin.Context, err error) {
	kind := workflow.KindOf(err)
	code, ok := workflowCodes[kind]
	if !ok {
		Error(c, err.Error(), NotSpecified)
		return
	}
	httpCode := http.StatusConflict
	if kind == workflow.KindNotFound {
		httpCode = http.StatusNotFound
	}
	wrapResponse(c, httpCode, err.Error(), nil, code)
}
