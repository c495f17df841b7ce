// Package domain holds types shared by every entity model.
package domain

// ErrorInfo records the terminal failure of a record. Remediation, when
// present, tells the user what to do about it.
type ErrorInfo struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Remediation string `json:"remediation,omitempty"`
}
