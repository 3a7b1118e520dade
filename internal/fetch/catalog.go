package fetch

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/roach88/pipec/internal/ir"
)

// Catalog reads template and component includes from a local catalog.
//
// Templates live at <Root>/templates/<name>. A component address
// host/group/project/name@version maps to
// <Root>/components/group/project/<version>/templates/<name>.yml, or
// .../templates/<name>/template.yml when the component is a directory.
type Catalog struct {
	Root    string
	MaxSize int64
}

// NewCatalog returns a Catalog rooted at root.
func NewCatalog(root string) *Catalog {
	return &Catalog{Root: root}
}

// Fetch implements Fetcher.
func (c *Catalog) Fetch(ctx context.Context, src ir.IncludeSource) (*ir.Fetched, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch src.Kind {
	case ir.SourceTemplate:
		f, err := readBelow(filepath.Join(c.Root, "templates"), src.Location, c.MaxSize)
		if err != nil {
			return nil, wrap("fetch", src, err)
		}
		return f, nil

	case ir.SourceComponent:
		project, name, version, err := ParseComponent(src.Location)
		if err != nil {
			return nil, wrap("fetch", src, err)
		}
		root := filepath.Join(c.Root, "components")
		candidates := []string{
			path.Join(project, version, "templates", name+".yml"),
			path.Join(project, version, "templates", name, "template.yml"),
		}
		for _, candidate := range candidates {
			f, err := readBelow(root, candidate, c.MaxSize)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, wrap("fetch", src, err)
			}
			f.Name = name + ".yml"
			return f, nil
		}
		return nil, wrap("fetch", src, ErrNotFound)

	default:
		return nil, wrap("fetch", src, ErrUnsupported)
	}
}

// ParseComponent splits a component address host/project/name@version.
// The host is dropped from the returned project path.
func ParseComponent(address string) (project, name, version string, err error) {
	at := strings.LastIndex(address, "@")
	if at <= 0 || at == len(address)-1 {
		return "", "", "", fmt.Errorf("component address %q must be <fqdn>/<project>/<name>@<version>", address)
	}
	version = address[at+1:]
	parts := strings.Split(address[:at], "/")
	if len(parts) < 3 {
		return "", "", "", fmt.Errorf("component address %q must be <fqdn>/<project>/<name>@<version>", address)
	}
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			return "", "", "", ErrForbiddenPath
		}
	}
	if strings.Contains(version, "/") || version == ".." {
		return "", "", "", ErrForbiddenPath
	}
	name = parts[len(parts)-1]
	project = strings.Join(parts[1:len(parts)-1], "/")
	return project, name, version, nil
}
