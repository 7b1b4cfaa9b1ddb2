package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	streamyerrors "github.com/nexus-fleet/nexus/pkg/errors"
)

var (
	sudoUserPattern    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
	artifactNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

	validatorOnce sync.Once
	validatorInst *validator.Validate
)

// instance returns the shared validator, registering Nexus's custom tag
// validators exactly once, mirroring the teacher's
// internal/config/validator_instance.go singleton pattern.
func instance() *validator.Validate {
	validatorOnce.Do(func() {
		validatorInst = validator.New()
		_ = validatorInst.RegisterValidation("sudo_user", validateSudoUser)
		_ = validatorInst.RegisterValidation("no_traversal", validateNoTraversal)
	})
	return validatorInst
}

func validateSudoUser(fl validator.FieldLevel) bool {
	return sudoUserPattern.MatchString(fl.Field().String())
}

func validateNoTraversal(fl validator.FieldLevel) bool {
	return !containsTraversal(fl.Field().String())
}

func containsTraversal(path string) bool {
	if path == "" {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

// ValidateConfig runs struct-tag validation plus the cross-reference,
// cycle, path-traversal, and artifact-name invariants spec.md binds on the
// loader (§3, §6). It mirrors the teacher's internal/config/validator.go +
// cycle_detector.go two-stage shape: schema validation first, then
// semantic/graph checks.
func ValidateConfig(cfg *Config) error {
	if err := instance().Struct(cfg); err != nil {
		return streamyerrors.NewValidationError("config", err.Error(), err)
	}

	if err := validateHostGroupRefs(cfg); err != nil {
		return err
	}
	if err := validateTaskRefs(cfg); err != nil {
		return err
	}
	if err := validateHandlerRefs(cfg); err != nil {
		return err
	}
	if err := validateArtifactNames(cfg); err != nil {
		return err
	}

	if missing := validateTaskDeps(cfg.Tasks); len(missing) > 0 {
		pair := missing[0]
		return streamyerrors.NewValidationError("tasks",
			fmt.Sprintf("task %q depends on unknown task %q", pair[0], pair[1]), nil)
	}
	if cycle := detectTaskCycle(cfg.Tasks); len(cycle) > 0 {
		return streamyerrors.NewCycleError(cycle)
	}

	return nil
}

func validateHostGroupRefs(cfg *Config) error {
	for name, group := range cfg.Groups {
		for _, host := range group.Hosts {
			if _, ok := cfg.Hosts[host]; !ok {
				return streamyerrors.NewValidationError("groups",
					fmt.Sprintf("group %q references unknown host %q", name, host), nil)
			}
		}
	}
	return nil
}

func (c *Config) resolvesTarget(target string) bool {
	if target == LocalHost {
		return true
	}
	if _, ok := c.Hosts[target]; ok {
		return true
	}
	_, ok := c.Groups[target]
	return ok
}

func validateTaskRefs(cfg *Config) error {
	names := make([]string, 0, len(cfg.Tasks))
	for name := range cfg.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		task := cfg.Tasks[name]
		if !cfg.resolvesTarget(task.On) {
			return streamyerrors.NewValidationError("tasks",
				fmt.Sprintf("task %q targets unknown host or group %q", name, task.On), nil)
		}
		for _, step := range task.Commands {
			if err := validateStepArtifacts(name, step); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateHandlerRefs(cfg *Config) error {
	for _, task := range cfg.Tasks {
		for _, step := range task.Commands {
			if step.Kind == StepResource && step.Resource != nil && step.Resource.Notify != "" {
				if _, ok := cfg.Handlers[step.Resource.Notify]; !ok {
					return streamyerrors.NewValidationError("handlers",
						fmt.Sprintf("resource notifies unknown handler %q", step.Resource.Notify), nil)
				}
			}
		}
	}
	return nil
}

func validateStepArtifacts(taskName string, step Step) error {
	check := func(paths ...string) error {
		for _, p := range paths {
			if containsTraversal(p) {
				return streamyerrors.NewValidationError("tasks",
					fmt.Sprintf("task %q references a path-traversal sequence in %q", taskName, p), nil)
			}
		}
		return nil
	}

	switch step.Kind {
	case StepUpload:
		if step.Upload != nil {
			if err := check(step.Upload.Source, step.Upload.Destination); err != nil {
				return err
			}
			return checkArtifactName(step.Upload.Source)
		}
	case StepDownload:
		if step.Download != nil {
			if err := check(step.Download.Source, step.Download.Destination); err != nil {
				return err
			}
			return checkArtifactName(step.Download.Destination)
		}
	case StepTemplate:
		if step.Template != nil {
			if err := check(step.Template.Source, step.Template.Destination); err != nil {
				return err
			}
			return checkArtifactName(step.Template.Source)
		}
	}
	return nil
}

func checkArtifactName(path string) error {
	// Directory components are fine; only the bare artifact name (the file
	// actually shipped as part of the run) is pattern-checked — but that
	// check always runs, even when path carries a directory component.
	name := filepath.Base(path)
	if !artifactNamePattern.MatchString(name) {
		return streamyerrors.NewValidationError("tasks",
			fmt.Sprintf("artifact name %q must match [A-Za-z0-9._-]+", name), nil)
	}
	return nil
}

func validateArtifactNames(cfg *Config) error {
	for name := range cfg.Hosts {
		if name == "" {
			return streamyerrors.NewValidationError("hosts", "host name cannot be empty", nil)
		}
	}
	return nil
}
