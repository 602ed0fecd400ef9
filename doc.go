// Package rise is a small code editor for Starlark and JavaScript with run,
// open, save, share and download actions, served to browsers or run in a
// terminal.
//
// # Overview
//
// Each open editor is an [editor.EditorSession]. Its view sits behind the
// [editor.UI] interface, so the same actions drive a browser page over a
// websocket ([server]) and a terminal (cmd/rise edit).
//
// # Basic Usage
//
//	session := editor.NewEditorSession(ui,
//	    editor.WithInterpreters(starlark.New()),
//	    editor.WithDrafts(store.NewDrafts(store.NewMemory(), "me")))
//	defer session.Close()
//
//	editor.Bootstrap(ctx, session, pageURL) // shared link, else draft, else empty
//	session.SetText(`print("hello")`)
//	editor.Run(ctx, session)                // hello\n\n<completed in 1 ms>
//
// # Sharing
//
//	link, _ := share.Encode(source, "https://rise.example/")
//	// https://rise.example/?code=print(%22hello%22)
//
// # Storage
//
// Drafts are kept in a [store.Store]: memory, SQLite, PostgreSQL or S3.
//
// See the [editor], [server], [store], [share], [language/starlark] and
// [language/javascript] packages for detailed API documentation.
package rise
