package debugmode

import (
	"os"

	"devassist/internal/models"
	"devassist/internal/options"
	"devassist/internal/wpconfig"
)

// ConstantStatus describes one managed constant
type ConstantStatus struct {
	Name     string          `json:"name"`
	State    models.TriState `json:"state"`
	Desired  bool            `json:"desired"`
	InSync   bool            `json:"in_sync"`
	Original models.TriState `json:"original,omitempty"`
}

// Status is a read-only view of the site's debug setup
type Status struct {
	ConfigPath     string           `json:"config_path"`
	ConfigReadable bool             `json:"config_readable"`
	Constants      []ConstantStatus `json:"constants"`
	LogPath        string           `json:"log_path"`
	LogExists      bool             `json:"log_exists"`
	LogSize        int64            `json:"log_size"`
	LogLarge       bool             `json:"log_large"`
	HtaccessExists bool             `json:"htaccess_exists"`
	LogProtected   bool             `json:"log_protected"`
}

// Status inspects the files without changing them
func (e *Engine) Status(s options.Settings) (Status, error) {
	st := Status{
		ConfigPath:     e.Paths.Config,
		LogPath:        e.Paths.Log,
		HtaccessExists: e.FS.Exists(e.Paths.Htaccess),
	}

	want := Desired(s)
	content, err := e.FS.ReadText(e.Paths.Config)
	st.ConfigReadable = err == nil

	for _, name := range Constants {
		c := ConstantStatus{Name: name, Desired: want[name]}
		if st.ConfigReadable {
			c.State = wpconfig.Detect(content, name)
			c.InSync = (c.State == models.Enabled) == want[name]
		}
		if orig, ok, err := e.Originals.Peek(name); err != nil {
			return st, err
		} else if ok {
			c.Original = orig
		}
		st.Constants = append(st.Constants, c)
	}

	if info, err := os.Stat(e.Paths.Log); err == nil {
		st.LogExists = true
		st.LogSize = info.Size()
		st.LogLarge = info.Size() >= LargeLogSize
	}

	protected, err := e.Patcher.Has(e.Paths.Htaccess, HtaccessMarker)
	if err != nil {
		return st, err
	}
	st.LogProtected = protected

	return st, nil
}
