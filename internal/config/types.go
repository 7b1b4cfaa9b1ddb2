// Package config holds the in-memory representation of a Nexus run
// document: hosts, groups, tasks, handlers, and the process-wide defaults
// that govern a single invocation. The document itself is loaded and
// validated by ParseConfig; callers treat the resulting *Config as read-only
// for the remainder of the run.
package config

import "sort"

// Host is one addressable SSH target, parsed from "[user@]host[:port]".
type Host struct {
	Name     string `yaml:"-"`
	Hostname string `yaml:"hostname" validate:"required"`
	User     string `yaml:"user,omitempty"`
	Port     int    `yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`
}

// LocalHost is the reserved name meaning "run in a local subshell".
const LocalHost = "local"

// HostGroup names an ordered set of Host names. Groups cannot contain groups.
type HostGroup struct {
	Name  string   `yaml:"-"`
	Hosts []string `yaml:"hosts" validate:"required,min=1"`
}

// Settings holds process-wide defaults applied across the run.
type Settings struct {
	DefaultUser     string `yaml:"default_user,omitempty"`
	DefaultPort     int    `yaml:"default_port,omitempty" validate:"omitempty,min=1,max=65535"`
	ConnectTimeout  int    `yaml:"connect_timeout,omitempty" validate:"omitempty,min=1"`
	CommandTimeout  int    `yaml:"command_timeout,omitempty" validate:"omitempty,min=1"`
	MaxConnections  int    `yaml:"max_connections,omitempty" validate:"omitempty,min=1,max=256"`
	ContinueOnError bool   `yaml:"continue_on_error,omitempty"`
	ParallelLimit   int    `yaml:"parallel_limit,omitempty" validate:"omitempty,min=1"`
}

// ApplyDefaults returns a copy of s with zero fields replaced by engine defaults.
func (s Settings) ApplyDefaults() Settings {
	out := s
	if out.DefaultPort == 0 {
		out.DefaultPort = 22
	}
	if out.ConnectTimeout == 0 {
		out.ConnectTimeout = 10
	}
	if out.MaxConnections == 0 {
		out.MaxConnections = 5
	}
	if out.ParallelLimit == 0 {
		out.ParallelLimit = 10
	}
	return out
}

// Strategy enumerates the ways a Task's commands are applied across hosts.
type Strategy string

const (
	StrategyParallel Strategy = "parallel"
	StrategySerial   Strategy = "serial"
	StrategyRolling  Strategy = "rolling"
)

// Task is a named unit of work executed on a resolved host set.
type Task struct {
	Name      string   `yaml:"-"`
	DependsOn []string `yaml:"depends_on,omitempty"`
	On        string   `yaml:"on" validate:"required"`
	Commands  []Step   `yaml:"commands" validate:"required,min=1,dive"`
	Timeout   int      `yaml:"timeout,omitempty" validate:"omitempty,min=1"`
	Strategy  Strategy `yaml:"strategy,omitempty" validate:"omitempty,oneof=serial parallel rolling"`
	BatchSize int      `yaml:"batch_size,omitempty" validate:"omitempty,min=1"`
}

// EffectiveStrategy returns the configured strategy or the default (parallel).
func (t Task) EffectiveStrategy() Strategy {
	if t.Strategy == "" {
		return StrategyParallel
	}
	return t.Strategy
}

// EffectiveBatchSize returns the configured rolling batch size or the default (1).
func (t Task) EffectiveBatchSize() int {
	if t.BatchSize <= 0 {
		return 1
	}
	return t.BatchSize
}

// StepKind discriminates the tagged union carried by Step.
type StepKind string

const (
	StepCommand  StepKind = "command"
	StepResource StepKind = "resource"
	StepUpload   StepKind = "upload"
	StepDownload StepKind = "download"
	StepTemplate StepKind = "template"
	StepWaitFor  StepKind = "wait_for"
)

// Step is one entry in a Task's ordered command list: a Command, a
// Resource, or one of the specialized transfer/health-check steps.
type Step struct {
	Kind     StepKind
	Command  *Command
	Resource *Resource
	Upload   *UploadStep
	Download *DownloadStep
	Template *TemplateStep
	WaitFor  *WaitForStep
}

// Command executes a raw shell command, optionally with sudo.
type Command struct {
	Cmd        string            `yaml:"cmd" validate:"required"`
	Sudo       bool              `yaml:"sudo,omitempty"`
	User       string            `yaml:"user,omitempty" validate:"omitempty,sudo_user"`
	Timeout    int               `yaml:"timeout,omitempty" validate:"omitempty,min=1"`
	Retries    int               `yaml:"retries,omitempty" validate:"omitempty,min=0"`
	RetryDelay int               `yaml:"retry_delay,omitempty" validate:"omitempty,min=0"`
	Cwd        string            `yaml:"cwd,omitempty"`
	Env        map[string]string `yaml:"env,omitempty"`
}

// ResourceKind enumerates the supported declarative resource kinds.
type ResourceKind string

const (
	ResourcePackage   ResourceKind = "package"
	ResourceService   ResourceKind = "service"
	ResourceFile      ResourceKind = "file"
	ResourceDirectory ResourceKind = "directory"
	ResourceUser      ResourceKind = "user"
	ResourceGroup     ResourceKind = "group"
	ResourceCommand   ResourceKind = "command"
)

// Resource is a declarative, idempotent unit (package/service/file/...)
// carrying its desired state plus the common guard/notify attributes.
type Resource struct {
	Kind ResourceKind

	When   string `yaml:"when,omitempty"`
	Notify string `yaml:"notify,omitempty"`

	Package   *PackageResource   `yaml:",inline,omitempty"`
	Service   *ServiceResource   `yaml:",inline,omitempty"`
	File      *FileResource      `yaml:",inline,omitempty"`
	Directory *DirectoryResource `yaml:",inline,omitempty"`
	User      *UserResource      `yaml:",inline,omitempty"`
	Group     *GroupResource     `yaml:",inline,omitempty"`
	CmdRes    *CommandResource   `yaml:",inline,omitempty"`
}

// Describe renders a short human-readable identity for logging/results.
func (r Resource) Describe() string {
	switch r.Kind {
	case ResourcePackage:
		if r.Package != nil {
			return "package(" + joinNames(r.Package.Names) + ")"
		}
	case ResourceService:
		if r.Service != nil {
			return "service(" + r.Service.Name + ")"
		}
	case ResourceFile:
		if r.File != nil {
			return "file(" + r.File.Path + ")"
		}
	case ResourceDirectory:
		if r.Directory != nil {
			return "directory(" + r.Directory.Path + ")"
		}
	case ResourceUser:
		if r.User != nil {
			return "user(" + r.User.Name + ")"
		}
	case ResourceGroup:
		if r.Group != nil {
			return "group(" + r.Group.Name + ")"
		}
	case ResourceCommand:
		if r.CmdRes != nil {
			return "command(" + r.CmdRes.Cmd + ")"
		}
	}
	return string(r.Kind)
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ","
		}
		out += n
	}
	return out
}

// PackageResource declares the desired installation state of named packages.
type PackageResource struct {
	Names []string `yaml:"names" validate:"required,min=1"`
	State string   `yaml:"state,omitempty" validate:"omitempty,oneof=installed absent"`
}

// ServiceResource declares the desired running/enabled state of a service.
type ServiceResource struct {
	Name    string `yaml:"name" validate:"required"`
	State   string `yaml:"state,omitempty" validate:"omitempty,oneof=started stopped restarted"`
	Enabled *bool  `yaml:"enabled,omitempty"`
}

// FileResource declares the desired content/mode/owner of a file.
type FileResource struct {
	Path    string  `yaml:"path" validate:"required"`
	State   string  `yaml:"state,omitempty" validate:"omitempty,oneof=present absent"`
	Content string  `yaml:"content,omitempty"`
	Source  string  `yaml:"source,omitempty" validate:"omitempty,no_traversal"`
	Mode    *uint32 `yaml:"mode,omitempty"`
	Owner   string  `yaml:"owner,omitempty"`
	Group   string  `yaml:"group,omitempty"`
}

// DirectoryResource declares the desired presence/mode/owner of a directory.
type DirectoryResource struct {
	Path      string  `yaml:"path" validate:"required"`
	State     string  `yaml:"state,omitempty" validate:"omitempty,oneof=present absent"`
	Mode      *uint32 `yaml:"mode,omitempty"`
	Owner     string  `yaml:"owner,omitempty"`
	Group     string  `yaml:"group,omitempty"`
	Recursive bool    `yaml:"recursive,omitempty"`
}

// UserResource declares the desired presence of a system account.
type UserResource struct {
	Name   string `yaml:"name" validate:"required"`
	State  string `yaml:"state,omitempty" validate:"omitempty,oneof=present absent"`
	Shell  string `yaml:"shell,omitempty"`
	Home   string `yaml:"home,omitempty"`
	Groups []string `yaml:"groups,omitempty"`
}

// GroupResource declares the desired presence of a system group.
type GroupResource struct {
	Name  string `yaml:"name" validate:"required"`
	State string `yaml:"state,omitempty" validate:"omitempty,oneof=present absent"`
	GID   *int   `yaml:"gid,omitempty"`
}

// CommandResource wraps a shell invocation with idempotency guards.
type CommandResource struct {
	Cmd     string `yaml:"cmd" validate:"required"`
	Creates string `yaml:"creates,omitempty"`
	Removes string `yaml:"removes,omitempty"`
	Unless  string `yaml:"unless,omitempty"`
	Onlyif  string `yaml:"onlyif,omitempty"`
}

// UploadStep copies a local file to a remote path over SFTP.
type UploadStep struct {
	Source      string  `yaml:"source" validate:"required,no_traversal"`
	Destination string  `yaml:"destination" validate:"required"`
	Mode        *uint32 `yaml:"mode,omitempty"`
	Owner       string  `yaml:"owner,omitempty"`
	Group       string  `yaml:"group,omitempty"`
}

// DownloadStep copies a remote file to a local path over SFTP.
type DownloadStep struct {
	Source      string `yaml:"source" validate:"required"`
	Destination string `yaml:"destination" validate:"required,no_traversal"`
}

// TemplateStep renders Source with Vars substitution to Destination.
type TemplateStep struct {
	Source      string            `yaml:"source" validate:"required,no_traversal"`
	Destination string            `yaml:"destination" validate:"required"`
	Vars        map[string]string `yaml:"vars,omitempty"`
	Mode        *uint32           `yaml:"mode,omitempty"`
}

// WaitForKind enumerates the supported health-check mechanisms.
type WaitForKind string

const (
	WaitForHTTP    WaitForKind = "http"
	WaitForTCP     WaitForKind = "tcp"
	WaitForCommand WaitForKind = "command"
)

// WaitForStep polls a target until it becomes healthy or a timeout expires.
type WaitForStep struct {
	Kind           WaitForKind `yaml:"kind" validate:"required,oneof=http tcp command"`
	Target         string      `yaml:"target" validate:"required"`
	ExpectStatus   int         `yaml:"expect_status,omitempty"`
	IntervalMillis int         `yaml:"interval_ms,omitempty" validate:"omitempty,min=1"`
	TimeoutMillis  int         `yaml:"timeout_ms,omitempty" validate:"omitempty,min=1"`
}

// Handler is a named command sequence deferred to the end of a run.
type Handler struct {
	Name     string    `yaml:"-"`
	Commands []Command `yaml:"commands" validate:"required,min=1,dive"`
}

// Config is the root document: the full name -> value maps plus settings.
type Config struct {
	Hosts      map[string]Host      `yaml:"hosts,omitempty"`
	Groups     map[string]HostGroup `yaml:"groups,omitempty"`
	Tasks      map[string]Task      `yaml:"tasks" validate:"required,min=1"`
	Handlers   map[string]Handler   `yaml:"handlers,omitempty"`
	Settings   Settings             `yaml:"settings,omitempty"`
}

// AllHostNames returns every host name in the config, sorted.
func (c *Config) AllHostNames() []string {
	names := make([]string, 0, len(c.Hosts))
	for name := range c.Hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
