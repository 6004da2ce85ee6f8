package changespec

// ChangeKind represents the kind of public API change between two versions.
type ChangeKind string

const (
	ChangeKindRenamed          ChangeKind = "renamed"
	ChangeKindSignatureChanged ChangeKind = "signature_changed"
	ChangeKindRemoved          ChangeKind = "removed"
	ChangeKindAdded            ChangeKind = "added"
	ChangeKindTypeChanged      ChangeKind = "type_changed"
	ChangeKindRetargeted       ChangeKind = "retargeted"
	ChangeKindMoved            ChangeKind = "moved"
)

// Breaking reports whether consumers of the old version can be broken by the
// change. Added exports never break them.
func (k ChangeKind) Breaking() bool {
	return k != ChangeKindAdded
}

// Confidence indicates how certain the classification of a change is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
)

// Change represents a single API change between two versions.
type Change struct {
	Kind         ChangeKind `json:"kind" yaml:"kind"`
	Symbol       string     `json:"symbol" yaml:"symbol"`
	Module       string     `json:"module" yaml:"module"`
	OldSignature string     `json:"old_signature,omitempty" yaml:"old_signature,omitempty"`
	NewSignature string     `json:"new_signature,omitempty" yaml:"new_signature,omitempty"`
	NewName      string     `json:"new_name,omitempty" yaml:"new_name,omitempty"`
	NewModule    string     `json:"new_module,omitempty" yaml:"new_module,omitempty"`
	OldTarget    string     `json:"old_target,omitempty" yaml:"old_target,omitempty"`
	NewTarget    string     `json:"new_target,omitempty" yaml:"new_target,omitempty"`
	Confidence   Confidence `json:"confidence" yaml:"confidence"`
}

// ChangeSpec is the full set of changes between two package versions.
type ChangeSpec struct {
	Package    string   `json:"package" yaml:"package"`
	OldVersion string   `json:"old_version" yaml:"old_version"`
	NewVersion string   `json:"new_version" yaml:"new_version"`
	Changes    []Change `json:"changes" yaml:"changes"`
}

// Breaking returns the changes that can break consumers of the old version.
func (s ChangeSpec) Breaking() []Change {
	var out []Change
	for _, c := range s.Changes {
		if c.Kind.Breaking() {
			out = append(out, c)
		}
	}
	return out
}
