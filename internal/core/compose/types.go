package compose

// =============================================================================
// Mount Classification Types
// =============================================================================

// MountKind is the outcome of classifying a service mount entry.
type MountKind string

const (
	// MountBind is a host path; never namespaced.
	MountBind MountKind = "bind"
	// MountNamedVolume references a volume by name, optionally with a sub-path.
	// Whether it is rewritten depends on the declared volume set.
	MountNamedVolume MountKind = "volume"
	// MountAnonymous is a structured entry without a source (anonymous volume,
	// tmpfs, ...). It cannot reference a named volume.
	MountAnonymous MountKind = "anonymous"
	// MountUnrecognized is a shape the rewriter cannot classify. It is passed
	// through unchanged and reported.
	MountUnrecognized MountKind = "unrecognized"
)

// MountForm is the syntax a mount entry was written in.
type MountForm string

const (
	FormCompact    MountForm = "compact"
	FormStructured MountForm = "structured"
	FormOther      MountForm = "other"
)

// MountRef is the classification of a single mount entry.
type MountRef struct {
	Kind MountKind
	Form MountForm

	// Name is the volume-name component of the source (MountNamedVolume only).
	Name string
	// SubPath is the source text after the first "/" following Name.
	SubPath string

	// Reason explains a MountUnrecognized classification.
	Reason string
}

// =============================================================================
// Rewrite Result Types
// =============================================================================

// Result is the outcome of namespacing a document's volumes.
type Result struct {
	Document *Document `json:"-"`
	Token    string    `json:"token"`

	// Renamed lists every top-level volume key rename, in declaration order.
	Renamed []VolumeRename `json:"renamed"`
	// Rewritten lists every service mount that was updated.
	Rewritten []MountRewrite `json:"rewritten"`
	// Skipped lists mount entries left untouched because their shape could
	// not be classified. Their volumes, if any, are not namespaced.
	Skipped []SkippedMount `json:"skipped"`
}

// VolumeRename maps an original volume name to its namespaced name.
type VolumeRename struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// MountRewrite describes a single rewritten mount entry.
type MountRewrite struct {
	Service string    `json:"service"`
	Index   int       `json:"index"`
	Form    MountForm `json:"form"`
	From    string    `json:"from"` // full compact string, or structured source
	To      string    `json:"to"`
}

// SkippedMount describes a mount entry passed through without classification.
type SkippedMount struct {
	Service string `json:"service"`
	Index   int    `json:"index"`
	Reason  string `json:"reason"`
}

// Field returns the dotted document path of the skipped entry.
func (s SkippedMount) Field() string {
	return mountField(s.Service, s.Index)
}
