package logger

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

type PackageNameResolver struct {
	BasePackage string
	Depth       int
}

/*
PackageName returns the package of the caller relative to BasePackage,
"internal/" prefix is dropped, ie loggers created in
github.com/alphabill-org/zkbridge/internal/bridge are named "bridge".
*/
func (r *PackageNameResolver) PackageName() string {
	pc, _, _, _ := runtime.Caller(r.depth())
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknown"
	}
	name := fn.Name()
	if _, after, found := strings.Cut(name, r.BasePackage); found {
		name = after
	}
	// package path ends at the first dot after the last slash
	if i := strings.LastIndex(name, "/"); i >= 0 {
		if j := strings.Index(name[i:], "."); j >= 0 {
			name = name[:i+j]
		}
	} else if j := strings.Index(name, "."); j >= 0 {
		name = name[:j]
	}
	name = strings.Trim(name, "/")
	return strings.TrimPrefix(name, "internal/")
}

func (r *PackageNameResolver) depth() int {
	// skip PackageName and the logger constructor
	if r.Depth == 0 {
		return 2
	}
	return r.Depth
}

func goroutineID() uint64 {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	n, _ := strconv.ParseUint(string(b), 10, 64)
	return n
}

func formatCallerLastTwoDirs(i any) string {
	c, _ := i.(string)
	parts := strings.Split(c, string(os.PathSeparator))
	if l := len(parts); l > 2 {
		return fmt.Sprintf("%s/%s/%s", parts[l-3], parts[l-2], parts[l-1])
	}
	return c
}
