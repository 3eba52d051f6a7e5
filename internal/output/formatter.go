package output

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"devassist/internal/app"
	"devassist/internal/debugmode"
	"devassist/internal/models"
	"devassist/internal/notice"
	"devassist/internal/supportuser"
)

// SettingRow is one line of the settings listing
type SettingRow struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Usage string `json:"usage"`
}

// Formatter defines the interface for output formatting
type Formatter interface {
	Overview(ov app.Overview)
	DebugStatus(st debugmode.Status)
	SupportSummary(s supportuser.Summary)
	Credential(login, secret string)
	ShareMessage(m supportuser.ShareMessage)
	Settings(rows []SettingRow)
	Accounts(accounts []models.Account)
	Notices(notices []notice.Notice)
	Success(msg string)
	Error(err error)
	Info(msg string)
	KeyValue(key, value string)
	Section(title string)
	JSON(v interface{})
}

// TextFormatter outputs human-readable text
type TextFormatter struct{}

// JSONFormatter outputs JSON
type JSONFormatter struct{}

// New returns the appropriate formatter based on json flag
func New(jsonOutput bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &TextFormatter{}
}

// TextFormatter implementations

func (f *TextFormatter) Overview(ov app.Overview) {
	active := "inactive"
	if ov.Active {
		active = "active"
	}
	fmt.Printf("Site:     %s\n", active)
	if ov.SiteURL != "" {
		fmt.Printf("URL:      %s\n", ov.SiteURL)
	}
	f.Section("Debug")
	f.DebugStatus(ov.Debug)
	f.Section("Support user")
	f.SupportSummary(ov.Support)
}

func (f *TextFormatter) DebugStatus(st debugmode.Status) {
	if !st.ConfigReadable {
		fmt.Printf("Config:   %s (unreadable)\n", st.ConfigPath)
	} else {
		fmt.Printf("Config:   %s\n", st.ConfigPath)
	}
	for _, c := range st.Constants {
		mark := " "
		if st.ConfigReadable && !c.InSync {
			mark = "!"
		}
		line := fmt.Sprintf("%s %-17s %-8s want %s", mark, c.Name, stateOrUnknown(c.State), onOff(c.Desired))
		if c.Original != "" {
			line += fmt.Sprintf(" (original %s)", c.Original)
		}
		fmt.Println(line)
	}

	if st.LogExists {
		size := humanize.Bytes(uint64(st.LogSize))
		if st.LogLarge {
			size += ", large"
		}
		fmt.Printf("Log:      %s (%s)\n", st.LogPath, size)
	} else {
		fmt.Printf("Log:      %s (absent)\n", st.LogPath)
	}

	switch {
	case !st.HtaccessExists:
		fmt.Println("Access:   no .htaccess")
	case st.LogProtected:
		fmt.Println("Access:   protected")
	default:
		fmt.Println("Access:   open")
	}
}

func (f *TextFormatter) SupportSummary(s supportuser.Summary) {
	if !s.Exists {
		if s.Enabled {
			fmt.Println("No support user. Run 'dva support create' to add one.")
		} else {
			fmt.Println("Support user disabled.")
		}
		return
	}
	fmt.Printf("Login:    %s\n", s.Login)
	fmt.Printf("ID:       %d\n", s.ID)
	fmt.Printf("Secret:   %s\n", s.State)
	if s.Email != "" {
		fmt.Printf("Email:    %s\n", s.Email)
	}
	if !s.CreatedAt.IsZero() {
		fmt.Printf("Created:  %s\n", humanize.Time(s.CreatedAt))
	}
	if s.AutoDelete {
		fmt.Printf("Expires:  in %s\n", pluralDays(s.DaysRemaining))
	} else {
		fmt.Println("Expires:  never")
	}
	if s.LoseAccessSoon {
		fmt.Println("The support user will lose access soon. Run 'dva support extend' to keep it.")
	}
}

func (f *TextFormatter) Credential(login, secret string) {
	fmt.Printf("Login:    %s\n", login)
	fmt.Printf("Password: %s\n", secret)
	if secret == supportuser.Mask {
		fmt.Println("The password was already displayed. Recreate the support user to get a new one.")
	} else {
		fmt.Println("Store the password now, it will not be shown again.")
	}
}

func (f *TextFormatter) ShareMessage(m supportuser.ShareMessage) {
	fmt.Printf("To:       %s\n", m.To)
	fmt.Printf("Subject:  %s\n\n", m.Subject)
	fmt.Print(m.Body)
}

func (f *TextFormatter) Settings(rows []SettingRow) {
	width := 0
	for _, r := range rows {
		width = max(width, len(r.Name))
	}
	for _, r := range rows {
		fmt.Printf("%-*s  %-4s  %s\n", width, r.Name, r.Value, r.Usage)
	}
}

func (f *TextFormatter) Accounts(accounts []models.Account) {
	if len(accounts) == 0 {
		fmt.Println("No accounts.")
		return
	}
	for _, a := range accounts {
		email := ""
		if a.Email != "" {
			email = " <" + a.Email + ">"
		}
		fmt.Printf("[%d] %s%s (%s, created %s)\n", a.ID, a.Login, email, a.Role, humanize.Time(a.CreatedAt))
	}
}

func (f *TextFormatter) Notices(notices []notice.Notice) {
	for _, n := range notices {
		switch n.Level {
		case notice.Error, notice.Warning:
			fmt.Fprintf(os.Stderr, "%s: %s\n", strings.ToUpper(string(n.Level)), n.Message)
		default:
			fmt.Println(n.Message)
		}
	}
}

func (f *TextFormatter) Success(msg string) {
	fmt.Println(msg)
}

func (f *TextFormatter) Error(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

func (f *TextFormatter) Info(msg string) {
	fmt.Println(msg)
}

func (f *TextFormatter) KeyValue(key, value string) {
	fmt.Printf("%s: %s\n", key, value)
}

func (f *TextFormatter) Section(title string) {
	fmt.Printf("\n%s:\n", title)
}

func (f *TextFormatter) JSON(v interface{}) {
	// TextFormatter doesn't output JSON, but provide fallback
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		f.Error(err)
		return
	}
	fmt.Println(string(data))
}

func stateOrUnknown(s models.TriState) string {
	if s == "" {
		return "unknown"
	}
	return string(s)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

// JSONFormatter implementations

func (f *JSONFormatter) Overview(ov app.Overview) {
	f.JSON(ov)
}

func (f *JSONFormatter) DebugStatus(st debugmode.Status) {
	f.JSON(st)
}

func (f *JSONFormatter) SupportSummary(s supportuser.Summary) {
	f.JSON(s)
}

func (f *JSONFormatter) Credential(login, secret string) {
	f.JSON(map[string]interface{}{
		"login":    login,
		"password": secret,
		"masked":   secret == supportuser.Mask,
	})
}

func (f *JSONFormatter) ShareMessage(m supportuser.ShareMessage) {
	f.JSON(m)
}

func (f *JSONFormatter) Settings(rows []SettingRow) {
	f.JSON(map[string]interface{}{
		"count":    len(rows),
		"settings": rows,
	})
}

func (f *JSONFormatter) Accounts(accounts []models.Account) {
	f.JSON(map[string]interface{}{
		"count":    len(accounts),
		"accounts": accounts,
	})
}

func (f *JSONFormatter) Notices(notices []notice.Notice) {
	if len(notices) == 0 {
		return
	}
	f.JSON(map[string]interface{}{"notices": notices})
}

func (f *JSONFormatter) Success(msg string) {
	f.JSON(map[string]interface{}{"success": true, "message": msg})
}

func (f *JSONFormatter) Error(err error) {
	f.JSON(map[string]interface{}{"error": true, "message": err.Error()})
}

func (f *JSONFormatter) Info(msg string) {
	f.JSON(map[string]interface{}{"message": msg})
}

func (f *JSONFormatter) KeyValue(key, value string) {
	f.JSON(map[string]string{key: value})
}

func (f *JSONFormatter) Section(title string) {
	// JSON doesn't need section headers
}

func (f *JSONFormatter) JSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, `{"error": true, "message": "JSON marshal error: %s"}`+"\n", err.Error())
		return
	}
	fmt.Println(string(data))
}
