package devserver

import (
	"bytes"
	_ "embed"
	"net/http"
	"strconv"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/js"
)

//go:embed reload.js
var reloadSource []byte

// reloadScript is the minified client.
var reloadScript = func() []byte {
	m := minify.New()
	m.AddFunc("application/javascript", js.Minify)
	out, err := m.Bytes("application/javascript", reloadSource)
	if err != nil {
		return reloadSource
	}
	return out
}()

var scriptTag = []byte(`<script src="` + reloadPath + `"></script>`)

// Inject inserts the reload client before the last </body>, or appends it
// when the document has none.
func Inject(html []byte) []byte {
	i := bytes.LastIndex(bytes.ToLower(html), []byte("</body>"))
	if i < 0 {
		return append(append([]byte{}, html...), scriptTag...)
	}
	out := make([]byte, 0, len(html)+len(scriptTag))
	out = append(out, html[:i]...)
	out = append(out, scriptTag...)
	return append(out, html[i:]...)
}

// injectWriter buffers successful HTML responses so the reload client can be
// added; everything else passes straight through.
type injectWriter struct {
	http.ResponseWriter
	buf     bytes.Buffer
	status  int
	html    bool
	decided bool
	// head responses carry no body, only the length the body would have.
	head   bool
	length string
}

func (w *injectWriter) WriteHeader(code int) {
	if w.decided {
		return
	}
	w.decided = true
	w.status = code
	w.html = code == http.StatusOK && strings.HasPrefix(w.Header().Get("Content-Type"), "text/html")
	if !w.html {
		w.ResponseWriter.WriteHeader(code)
		return
	}
	w.length = w.Header().Get("Content-Length")
	w.Header().Del("Content-Length")
}

func (w *injectWriter) Write(b []byte) (int, error) {
	if !w.decided {
		w.WriteHeader(http.StatusOK)
	}
	if w.html {
		return w.buf.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

func (w *injectWriter) finish() {
	if !w.html {
		return
	}
	if w.head {
		if n, err := strconv.Atoi(w.length); err == nil {
			w.Header().Set("Content-Length", strconv.Itoa(n+len(scriptTag)))
		}
		w.ResponseWriter.WriteHeader(w.status)
		return
	}
	body := Inject(w.buf.Bytes())
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.ResponseWriter.WriteHeader(w.status)
	_, _ = w.ResponseWriter.Write(body)
}

// injectReload wraps h so HTML pages load the reload client.
func injectReload(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		iw := &injectWriter{ResponseWriter: w, head: r.Method == http.MethodHead}
		h.ServeHTTP(iw, r)
		iw.finish()
	})
}
