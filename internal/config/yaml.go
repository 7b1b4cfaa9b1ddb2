package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML decodes the tagged Step union, dispatching on the "type"
// (resource kind) or step-shape discriminator the way the teacher's
// config.Step.UnmarshalYAML dispatches on a "type" field.
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	var probe struct {
		Type string `yaml:"type"`
	}
	if err := value.Decode(&probe); err != nil {
		return err
	}

	switch probe.Type {
	case "command":
		var cmd Command
		if err := value.Decode(&cmd); err != nil {
			return err
		}
		s.Kind = StepCommand
		s.Command = &cmd
	case "upload":
		var up UploadStep
		if err := value.Decode(&up); err != nil {
			return err
		}
		s.Kind = StepUpload
		s.Upload = &up
	case "download":
		var down DownloadStep
		if err := value.Decode(&down); err != nil {
			return err
		}
		s.Kind = StepDownload
		s.Download = &down
	case "template":
		var tmpl TemplateStep
		if err := value.Decode(&tmpl); err != nil {
			return err
		}
		s.Kind = StepTemplate
		s.Template = &tmpl
	case "wait_for":
		var wf WaitForStep
		if err := value.Decode(&wf); err != nil {
			return err
		}
		s.Kind = StepWaitFor
		s.WaitFor = &wf
	case string(ResourcePackage), string(ResourceService), string(ResourceFile),
		string(ResourceDirectory), string(ResourceUser), string(ResourceGroup), string(ResourceCommand):
		var res Resource
		if err := res.decode(probe.Type, value); err != nil {
			return err
		}
		s.Kind = StepResource
		s.Resource = &res
	default:
		return fmt.Errorf("unknown step type %q", probe.Type)
	}

	return nil
}

func (r *Resource) decode(kind string, value *yaml.Node) error {
	r.Kind = ResourceKind(kind)

	var common struct {
		When   string `yaml:"when"`
		Notify string `yaml:"notify"`
	}
	if err := value.Decode(&common); err != nil {
		return err
	}
	r.When = common.When
	r.Notify = common.Notify

	switch r.Kind {
	case ResourcePackage:
		var v PackageResource
		if err := value.Decode(&v); err != nil {
			return err
		}
		r.Package = &v
	case ResourceService:
		var v ServiceResource
		if err := value.Decode(&v); err != nil {
			return err
		}
		r.Service = &v
	case ResourceFile:
		var v FileResource
		if err := value.Decode(&v); err != nil {
			return err
		}
		r.File = &v
	case ResourceDirectory:
		var v DirectoryResource
		if err := value.Decode(&v); err != nil {
			return err
		}
		r.Directory = &v
	case ResourceUser:
		var v UserResource
		if err := value.Decode(&v); err != nil {
			return err
		}
		r.User = &v
	case ResourceGroup:
		var v GroupResource
		if err := value.Decode(&v); err != nil {
			return err
		}
		r.Group = &v
	case ResourceCommand:
		var v CommandResource
		if err := value.Decode(&v); err != nil {
			return err
		}
		r.CmdRes = &v
	}

	return nil
}

// decodeNamedHosts copies an already-decoded name -> Host map while
// stamping each value's Name field, mirroring the way the config document
// keys hosts/groups/tasks/handlers by name but the domain types carry their
// own Name for convenient standalone use.
func decodeNamedHosts(raw map[string]Host) map[string]Host {
	out := make(map[string]Host, len(raw))
	for name, h := range raw {
		h.Name = name
		out[name] = h
	}
	return out
}

func decodeNamedGroups(raw map[string]HostGroup) map[string]HostGroup {
	out := make(map[string]HostGroup, len(raw))
	for name, g := range raw {
		g.Name = name
		out[name] = g
	}
	return out
}

func decodeNamedTasks(raw map[string]Task) map[string]Task {
	out := make(map[string]Task, len(raw))
	for name, t := range raw {
		t.Name = name
		out[name] = t
	}
	return out
}

func decodeNamedHandlers(raw map[string]Handler) map[string]Handler {
	out := make(map[string]Handler, len(raw))
	for name, h := range raw {
		h.Name = name
		out[name] = h
	}
	return out
}

// UnmarshalYAML decodes the root document and stamps Name fields onto the
// map values decoded from name-keyed YAML mappings.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type rawConfig struct {
		Hosts    map[string]Host      `yaml:"hosts"`
		Groups   map[string]HostGroup `yaml:"groups"`
		Tasks    map[string]Task      `yaml:"tasks"`
		Handlers map[string]Handler   `yaml:"handlers"`
		Settings Settings             `yaml:"settings"`
	}

	var raw rawConfig
	if err := value.Decode(&raw); err != nil {
		return err
	}

	c.Hosts = decodeNamedHosts(raw.Hosts)
	c.Groups = decodeNamedGroups(raw.Groups)
	c.Tasks = decodeNamedTasks(raw.Tasks)
	c.Handlers = decodeNamedHandlers(raw.Handlers)
	c.Settings = raw.Settings
	return nil
}
