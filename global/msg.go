package global

import "PPCollab/tools/errs"

// Msg HTTP 接口统一返回体
type Msg struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func Success(data any) *Msg {
	return &Msg{
		Code: 200,
		Msg:  "",
		Data: data,
	}
}

// Fail renders err; errors without a code become ErrServerInternal.
func Fail(err error) *Msg {
	ce, ok := errs.AsCode(err)
	if !ok {
		ce = &errs.ErrServerInternal
	}
	m := &Msg{Code: ce.Code, Msg: ce.Msg}
	if ce.Detail != "" {
		m.Msg += ": " + ce.Detail
	}
	return m
}
