package proxy

import (
	"errors"
	"net/http"

	"ailife-hq/fortune-proxy/pkg/birth"
	"ailife-hq/fortune-proxy/pkg/proxy/types"
	"ailife-hq/fortune-proxy/pkg/retry"
	"ailife-hq/fortune-proxy/pkg/workflow"
)

// Failure is the caller-facing view of an error.
type Failure struct {
	Kind      workflow.ErrorKind
	Status    int
	Message   string
	Retryable bool
	Attempts  int

	// Code and DebugURL are set for workflow business errors.
	Code     *int64
	DebugURL string
}

// Classify maps an error from the pipeline to its kind, HTTP status and
// user-facing message. Retry exhaustion is classified by its last error.
func Classify(err error) Failure {
	f := Failure{}

	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		f.Attempts = exhausted.Attempts
	}

	var (
		validation *birth.ValidationError
		auth       *workflow.AuthError
		gateway    *workflow.GatewayError
		timeout    *workflow.TimeoutError
		network    *workflow.NetworkError
		business   *workflow.BusinessError
		malformed  *workflow.MalformedResponseError
		status     *workflow.UpstreamStatusError
	)
	switch {
	case errors.As(err, &validation):
		f.Kind = workflow.KindValidation
		f.Status = http.StatusBadRequest
		f.Message = validation.Error()

	case errors.As(err, &auth):
		f.Kind = workflow.KindAuth
		f.Status = http.StatusUnauthorized
		f.Message = "工作流认证失败，请检查API密钥或插件授权"

	case errors.As(err, &gateway):
		f.Kind = workflow.KindGateway
		f.Status = gateway.StatusCode
		f.Message = "上游网关暂时不可用，请稍后重试"
		f.Retryable = true

	case errors.As(err, &timeout):
		f.Kind = workflow.KindTimeout
		f.Status = http.StatusRequestTimeout
		f.Message = "工作流执行超时，请稍后重试"
		f.Retryable = true

	case errors.As(err, &network):
		f.Kind = workflow.KindNetwork
		f.Status = http.StatusBadGateway
		f.Message = "网络请求失败，请稍后重试"
		f.Retryable = true

	case errors.As(err, &business):
		code := business.Code
		f.Kind = workflow.KindBusiness
		f.Status = http.StatusOK
		f.Message = business.Message
		if f.Message == "" {
			f.Message = "工作流执行失败"
		}
		f.Code = &code
		f.DebugURL = business.DebugURL

	case errors.As(err, &malformed):
		f.Kind = workflow.KindMalformed
		f.Status = http.StatusBadGateway
		f.Message = "工作流返回了无法解析的结果"

	case errors.As(err, &status):
		f.Kind = workflow.KindUpstreamStatus
		f.Status = status.StatusCode
		f.Message = http.StatusText(status.StatusCode)
		if f.Message == "" {
			f.Message = "上游返回了异常状态"
		}

	default:
		f.Kind = workflow.KindInternal
		f.Status = http.StatusInternalServerError
		f.Message = "代理服务器内部错误"
	}

	if f.Status < 100 || f.Status > 599 {
		f.Status = http.StatusBadGateway
	}
	return f
}

// Envelope renders the failure.
func (f Failure) Envelope() *types.Envelope {
	env := types.NewFailure(string(f.Kind), f.Message, f.Retryable)
	env.Code = f.Code
	env.DebugURL = f.DebugURL
	env.Attempts = f.Attempts
	return env
}
