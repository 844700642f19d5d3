package domain

import "fmt"

// The *Result types are the decoded shape of each endpoint response. A
// result with Failed() true is a service-reported error; transport failures
// never produce a result.

type Answer struct {
	Text         string
	Cached       bool
	ResponseTime float64
}

// Annotated appends the cache/timing footer shown under every answer.
func (a Answer) Annotated() string {
	if a.Cached {
		return fmt.Sprintf("%s\n\n💾 *Cached response (%.2fs)*", a.Text, a.ResponseTime)
	}
	return fmt.Sprintf("%s\n\n⚡ *Response time: %.2fs*", a.Text, a.ResponseTime)
}

type AskResult struct {
	Answer Answer
	Error  string
}

func (r AskResult) Failed() bool {
	return r.Error != ""
}

type UploadResult struct {
	Success       bool
	Message       string
	DocumentCount int
	Error         string
}

func (r UploadResult) Failed() bool {
	return !r.Success
}

type ClearResult struct {
	Success bool
	Message string
}

func (r ClearResult) Failed() bool {
	return !r.Success
}

type StatusResult struct {
	DocumentCount int
}
