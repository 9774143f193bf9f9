package model

type ProviderDescriptor struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Priority   int    `json:"priority"`
	Configured bool   `json:"configured"`
}
