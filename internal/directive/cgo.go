package directive

import (
	"bytes"
	"fmt"
	"go/format"
	"strings"

	"github.com/goplus/magicksys/internal/linkmode"
)

// RenderCgo turns emitted directives into a Go source file carrying the matching
// #cgo CFLAGS and LDFLAGS for package pkg. goos selects how static archives are linked:
// darwin's linker has no -Bstatic, so archives are referenced by absolute path there.
func RenderCgo(pkg, goos string, ds []Directive) ([]byte, error) {
	var cflags, ldflags, extra, searchDirs []string
	seen := make(map[string]bool)
	add := func(dst *[]string, flag string) {
		key := fmt.Sprintf("%p|%s", dst, flag)
		if seen[key] {
			return
		}
		seen[key] = true
		*dst = append(*dst, quoteArg(flag))
	}

	for _, d := range ds {
		switch d.Kind {
		case Include:
			add(&cflags, "-I"+d.Value)
		case CFlag:
			add(&cflags, d.Value)
		case LinkSearch:
			searchDirs = append(searchDirs, d.Value)
			add(&ldflags, "-L"+d.Value)
		case LDFlag:
			// already split by the producer; "-framework X" stays two words
			if !seen["ld|"+d.Value] {
				seen["ld|"+d.Value] = true
				extra = append(extra, d.Value)
			}
		}
	}

	inStatic := false
	for _, d := range ds {
		if d.Kind != LinkLib {
			continue
		}
		if d.Mode == linkmode.Static && goos == "darwin" {
			if p, ok := linkmode.HasStatic(searchDirs, d.Value); ok {
				add(&ldflags, p)
				continue
			}
		}
		static := d.Mode == linkmode.Static && goos != "darwin"
		if static != inStatic {
			if static {
				ldflags = append(ldflags, "-Wl,-Bstatic")
			} else {
				ldflags = append(ldflags, "-Wl,-Bdynamic")
			}
			inStatic = static
		}
		add(&ldflags, "-l"+d.Value)
	}
	if inStatic {
		ldflags = append(ldflags, "-Wl,-Bdynamic")
	}
	ldflags = append(ldflags, extra...)

	var b bytes.Buffer
	b.WriteString("// Code generated by magicksys. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", pkg)
	b.WriteString("/*\n")
	if len(cflags) > 0 {
		fmt.Fprintf(&b, "#cgo CFLAGS: %s\n", strings.Join(cflags, " "))
	}
	if len(ldflags) > 0 {
		fmt.Fprintf(&b, "#cgo LDFLAGS: %s\n", strings.Join(ldflags, " "))
	}
	b.WriteString("*/\n")
	b.WriteString("import \"C\"\n")
	return format.Source(b.Bytes())
}

// quoteArg quotes s the way cgo splits directive arguments.
func quoteArg(s string) string {
	if !strings.ContainsAny(s, " \t'\"\\") {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(s) + "'"
}
