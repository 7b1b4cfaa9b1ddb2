package provider

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nexus-fleet/nexus/internal/config"
)

// linuxUserProvider manages User and Group resources via useradd/groupadd
// on Linux-family hosts.
type linuxUserProvider struct{}

func (linuxUserProvider) Check(ctx context.Context, resource config.Resource, session Session, _ Context) (string, error) {
	return checkUserOrGroup(ctx, resource, session)
}

func (linuxUserProvider) Diff(_ context.Context, resource config.Resource, current string, _ Context) (Diff, error) {
	return diffUserOrGroup(resource, current)
}

func (linuxUserProvider) Apply(ctx context.Context, resource config.Resource, diff Diff, session Session, _ Context) (Diff, error) {
	if !diff.Changed {
		return diff, nil
	}
	if resource.Kind == config.ResourceGroup {
		return diff, applyGroupLinux(ctx, resource.Group, session)
	}
	return diff, applyUserLinux(ctx, resource.User, session)
}

func (linuxUserProvider) Describe(resource config.Resource) string { return resource.Describe() }

// darwinUserProvider manages User and Group resources via dscl on macOS.
type darwinUserProvider struct{}

func (darwinUserProvider) Check(ctx context.Context, resource config.Resource, session Session, _ Context) (string, error) {
	return checkUserOrGroup(ctx, resource, session)
}

func (darwinUserProvider) Diff(_ context.Context, resource config.Resource, current string, _ Context) (Diff, error) {
	return diffUserOrGroup(resource, current)
}

func (darwinUserProvider) Apply(ctx context.Context, resource config.Resource, diff Diff, session Session, _ Context) (Diff, error) {
	if !diff.Changed {
		return diff, nil
	}
	name, wantAbsent := targetName(resource)
	path := "/Users/" + name
	if resource.Kind == config.ResourceGroup {
		path = "/Groups/" + name
	}
	if wantAbsent {
		_, err := session.ExecSudo(ctx, fmt.Sprintf("dscl . -delete %s", path), ExecOptions{})
		return diff, err
	}
	_, err := session.ExecSudo(ctx, fmt.Sprintf("dscl . -create %s", path), ExecOptions{})
	return diff, err
}

func (darwinUserProvider) Describe(resource config.Resource) string { return resource.Describe() }

func targetName(resource config.Resource) (name string, wantAbsent bool) {
	if resource.Kind == config.ResourceGroup {
		return resource.Group.Name, resource.Group.State == "absent"
	}
	return resource.User.Name, resource.User.State == "absent"
}

func checkUserOrGroup(ctx context.Context, resource config.Resource, session Session) (string, error) {
	name, _ := targetName(resource)
	cmd := fmt.Sprintf("id -u %s", name)
	if resource.Kind == config.ResourceGroup {
		cmd = fmt.Sprintf("getent group %s", name)
	}
	res, err := session.Exec(ctx, cmd, ExecOptions{})
	if err != nil {
		return "", err
	}
	if res.Ok() {
		return "present", nil
	}
	return "absent", nil
}

func diffUserOrGroup(resource config.Resource, current string) (Diff, error) {
	_, wantAbsent := targetName(resource)
	existed := current == "present"

	if wantAbsent {
		return Diff{Changed: existed, Before: current, After: "absent",
			Changes: changesIf(existed, "remove")}, nil
	}
	return Diff{Changed: !existed, Before: current, After: "present",
		Changes: changesIf(!existed, "create")}, nil
}

func applyUserLinux(ctx context.Context, user *config.UserResource, session Session) error {
	if user.State == "absent" {
		_, err := session.ExecSudo(ctx, fmt.Sprintf("userdel -r %s", user.Name), ExecOptions{})
		return err
	}

	args := []string{"useradd", "-m"}
	if user.Shell != "" {
		args = append(args, "-s", user.Shell)
	}
	if user.Home != "" {
		args = append(args, "-d", user.Home)
	}
	if len(user.Groups) > 0 {
		args = append(args, "-G", strings.Join(user.Groups, ","))
	}
	args = append(args, user.Name)

	_, err := session.ExecSudo(ctx, strings.Join(args, " "), ExecOptions{})
	return err
}

func applyGroupLinux(ctx context.Context, group *config.GroupResource, session Session) error {
	if group.State == "absent" {
		_, err := session.ExecSudo(ctx, fmt.Sprintf("groupdel %s", group.Name), ExecOptions{})
		return err
	}

	cmd := "groupadd " + group.Name
	if group.GID != nil {
		cmd = fmt.Sprintf("groupadd -g %s %s", strconv.Itoa(*group.GID), group.Name)
	}
	_, err := session.ExecSudo(ctx, cmd, ExecOptions{})
	return err
}
