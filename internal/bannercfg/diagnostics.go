package bannercfg

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Severity grades a diagnostic. Neither level aborts a load.
type Severity int

const (
	SeverityWarning Severity = iota
	// SeveritySevere marks input that was dropped.
	SeveritySevere
)

func (s Severity) String() string {
	if s == SeveritySevere {
		return "severe"
	}
	return "warning"
}

// Diagnostic is one configuration problem found while building banners.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Banner   string   `json:"banner,omitempty"`
	Path     string   `json:"path,omitempty"`
	Message  string   `json:"message"`
}

func (d Diagnostic) String() string {
	var sb strings.Builder
	sb.WriteString(d.Severity.String())
	if d.Banner != "" {
		sb.WriteString(" [" + d.Banner + "]")
	}
	if d.Path != "" {
		sb.WriteString(" " + d.Path)
	}
	sb.WriteString(": " + d.Message)
	return sb.String()
}

// Diagnostics collects everything Build had to work around.
type Diagnostics []Diagnostic

func (ds *Diagnostics) warnf(banner, path, format string, args ...any) {
	*ds = append(*ds, Diagnostic{Severity: SeverityWarning, Banner: banner, Path: path, Message: fmt.Sprintf(format, args...)})
}

func (ds *Diagnostics) severef(banner, path, format string, args ...any) {
	*ds = append(*ds, Diagnostic{Severity: SeveritySevere, Banner: banner, Path: path, Message: fmt.Sprintf(format, args...)})
}

// pathUUID is the diagnostic path of a generated banner UUID.
const pathUUID = "UUID"

// GeneratedIDs names the banners whose UUID was generated during Build.
// Until written back, those banners get a new UUID on every build.
func (ds Diagnostics) GeneratedIDs() []string {
	var out []string
	for _, d := range ds {
		if d.Path == pathUUID {
			out = append(out, d.Banner)
		}
	}
	return out
}

// Severe returns only the severe entries.
func (ds Diagnostics) Severe() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == SeveritySevere {
			out = append(out, d)
		}
	}
	return out
}

// Log writes each diagnostic: warnings at Warn, severe entries at Error.
func (ds Diagnostics) Log(log *zap.Logger) {
	if log == nil {
		return
	}
	for _, d := range ds {
		fields := []zap.Field{zap.String("banner", d.Banner), zap.String("path", d.Path)}
		if d.Severity == SeveritySevere {
			log.Error(d.Message, fields...)
			continue
		}
		log.Warn(d.Message, fields...)
	}
}
