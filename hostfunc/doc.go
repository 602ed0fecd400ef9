// Package hostfunc provides the host side of an interpreter run.
//
// Interpreted code has no implicit access to the page around it. Everything
// it can reach is a [Func] registered in a [Registry]: printing output,
// prompting the user for input and reading interpreter support files.
//
// # Host
//
// A [Host] carries the three callbacks for one run:
//
//	registry := hostfunc.NewRegistry()
//	hostfunc.Bind(registry, host)
//
// Bind registers output, input, read_file and time_now, which the language
// shims call over the executor's side channel.
//
// # Support Files
//
// [SupportFiles] resolves names requested by load()/require-style
// statements against read-only [Mount] points and fs.FS layers. Unknown
// names fail with a [FileNotFoundError]:
//
//	files := hostfunc.NewSupportFiles([]hostfunc.Mount{
//	    {VirtualPath: "/lib", HostPath: "./lib"},
//	}, hostfunc.WithFS(embedded))
//	src, err := files.Read("/lib/util.star")
//	if errors.Is(err, hostfunc.ErrFileNotFound) {
//	    // ...
//	}
package hostfunc
