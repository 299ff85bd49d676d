package models

import "errors"

// ResumeRequest is the payload that unpauses a node. Exactly one of MergeData
// (input interrupts) or ChosenPathIDs (path-decision interrupts) is supplied.
type ResumeRequest struct {
	ExecutionID   string         `json:"execution_id" validate:"required"`
	NodeID        string         `json:"node_id"      validate:"required"`
	MergeData     map[string]any `json:"merge_data,omitempty"`
	ChosenPathIDs []string       `json:"chosen_path_ids,omitempty"`
}

var ErrEmptyResume = errors.New("resume request carries neither merge data nor chosen paths")

// Validate rejects requests that carry nothing to merge and no decision.
func (r *ResumeRequest) Validate() error {
	if r.ExecutionID == "" || r.NodeID == "" {
		return errors.New("resume request requires execution_id and node_id")
	}

	if len(r.MergeData) == 0 && len(r.ChosenPathIDs) == 0 {
		return ErrEmptyResume
	}

	return nil
}
