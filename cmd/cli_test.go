package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	*httptest.Server
	documents  atomic.Int64
	clearCalls atomic.Int64
	apiKeys    chan string
}

func newFakeBackend(t *testing.T, documents int) *fakeBackend {
	t.Helper()

	backend := &fakeBackend{apiKeys: make(chan string, 16)}
	backend.documents.Store(int64(documents))

	mux := http.NewServeMux()
	mux.HandleFunc("/status", onMethod(http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `{"document_count":%d}`, backend.documents.Load())
	}))
	mux.HandleFunc("/ask", onMethod(http.MethodPost, func(w http.ResponseWriter, r *http.Request) {
		backend.apiKeys <- r.Header.Get("X-API-KEY")

		var req struct {
			Question string `json:"question"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if backend.documents.Load() == 0 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = fmt.Fprint(w, `{"error":"No documents uploaded yet"}`)
			return
		}
		_, _ = fmt.Fprintf(w, `{"response":"You asked **%s**.","cached":false,"response_time":1.5}`, req.Question)
	}))
	mux.HandleFunc("/upload", onMethod(http.MethodPost, func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = file.Close()

		count := backend.documents.Add(1)
		_, _ = fmt.Fprintf(w, `{"success":true,"message":"Document '%s' uploaded","document_count":%d}`, header.Filename, count)
	}))
	mux.HandleFunc("/clear-documents", onMethod(http.MethodPost, func(w http.ResponseWriter, r *http.Request) {
		backend.clearCalls.Add(1)
		backend.documents.Store(0)
		_, _ = fmt.Fprint(w, `{"success":true,"message":"All documents cleared"}`)
	}))

	backend.Server = httptest.NewServer(mux)
	t.Cleanup(backend.Close)
	return backend
}

func TestRootWithoutTerminalRefusesChat(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home)
	require.ErrorIs(t, err, errNoTerminal)
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", stdout)
}

func TestDocsStatusRendersCount(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t, 5)
	t.Setenv("DQ_SERVER_URL", backend.URL)

	stdout, _, err := executeCLI(t, home, "docs", "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Document Status")
	assert.Contains(t, stdout, "server: "+backend.URL)
	assert.Contains(t, stdout, "Documents loaded")
	assert.Contains(t, stdout, "documents: 5")
}

func TestDocsStatusJSONOutput(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t, 0)
	t.Setenv("DQ_SERVER_URL", backend.URL)

	stdout, _, err := executeCLI(t, home, "docs", "status", "--json")
	require.NoError(t, err)

	var got statusOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, statusOutput{
		Server:        backend.URL,
		DocumentCount: 0,
		Loaded:        false,
		Label:         "No documents loaded",
	}, got)
}

func TestDocsStatusUnreachableServer(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t, 1)
	backend.Close()
	t.Setenv("DQ_SERVER_URL", backend.URL)

	stdout, _, err := executeCLI(t, home, "docs", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check document status")
	assert.Contains(t, stdout, "server unreachable")
}

func TestAskPrintsFormattedAnswer(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t, 2)
	t.Setenv("DQ_SERVER_URL", backend.URL)

	stdout, _, err := executeCLI(t, home, "ask", "what", "is", "covered?")
	require.NoError(t, err)
	assert.Contains(t, stdout, "You asked what is covered?.")
	assert.Contains(t, stdout, "⚡ Response time: 1.50s")
	assert.NotContains(t, stdout, "**")
	assert.NotContains(t, stdout, "<strong>")
}

func TestAskJSONOutput(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t, 2)
	t.Setenv("DQ_SERVER_URL", backend.URL)

	stdout, _, err := executeCLI(t, home, "ask", "--json", "pricing")
	require.NoError(t, err)

	var got askOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, askOutput{Question: "pricing", Answer: "You asked **pricing**.", ResponseTime: 1.5}, got)
}

func TestAskServiceErrorFailsCommand(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t, 0)
	t.Setenv("DQ_SERVER_URL", backend.URL)

	_, _, err := executeCLI(t, home, "ask", "anything")
	require.Error(t, err)
	assert.Equal(t, "Error: No documents uploaded yet", err.Error())
}

func TestAskTransportFailureUsesChatReply(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t, 1)
	backend.Close()
	t.Setenv("DQ_SERVER_URL", backend.URL)

	_, _, err := executeCLI(t, home, "ask", "anything")
	require.Error(t, err)
	assert.Equal(t, "Sorry, I encountered an error while processing your question.", err.Error())

	stdout, _, err := executeCLI(t, home, "ask", "--json", "anything")
	require.Error(t, err)

	var got askOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, askOutput{
		Question: "anything",
		Error:    "Sorry, I encountered an error while processing your question.",
	}, got)
}

func TestAskBlankQuestionIsRejected(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "ask", "  ")
	require.Error(t, err)
	assert.Equal(t, "question is empty", err.Error())
}

func TestAskRequiresQuestion(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "ask")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestStoredServerSecretIsSentAsAPIKey(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t, 1)
	t.Setenv("DQ_SERVER_URL", backend.URL)

	stdout, _, err := executeCLI(t, home, "secret", "set", "server", "sk-stored")
	require.NoError(t, err)
	assert.Equal(t, "stored secret server\n", stdout)

	info, err := os.Stat(filepath.Join(home, ".config", "dq", "secrets", "server"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, _, err = executeCLI(t, home, "ask", "hello")
	require.NoError(t, err)
	assert.Equal(t, "sk-stored", <-backend.apiKeys)

	t.Setenv("DQ_SECRET_SERVER", "sk-env")
	_, _, err = executeCLI(t, home, "ask", "hello")
	require.NoError(t, err)
	assert.Equal(t, "sk-env", <-backend.apiKeys)
}

func TestSecretSetReadsValueFromStdinAndRemove(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLIWithInput(t, home, "dg-from-stdin\n", "secret", "set", "deepgram")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(home, ".config", "dq", "secrets", "deepgram"))
	require.NoError(t, err)
	assert.Equal(t, "dg-from-stdin", string(data))

	stdout, _, err := executeCLI(t, home, "secret", "rm", "deepgram")
	require.NoError(t, err)
	assert.Equal(t, "removed secret deepgram\n", stdout)
	assert.NoFileExists(t, filepath.Join(home, ".config", "dq", "secrets", "deepgram"))
}

func TestSecretSetRejectsEmptyValue(t *testing.T) {
	_, _, err := executeCLIWithInput(t, t.TempDir(), "\n", "secret", "set", "openai")
	require.EqualError(t, err, "secret value is empty")
}

func TestDocsUploadReportsNewCount(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t, 2)
	t.Setenv("DQ_SERVER_URL", backend.URL)

	path := filepath.Join(t.TempDir(), "handbook.txt")
	require.NoError(t, os.WriteFile(path, []byte("employee handbook"), 0o600))

	stdout, _, err := executeCLI(t, home, "docs", "upload", path)
	require.NoError(t, err)
	assert.Equal(t, "✅ Document 'handbook.txt' uploaded\ndocuments: 3\n", stdout)
}

func TestDocsUploadMissingFileFails(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t, 0)
	t.Setenv("DQ_SERVER_URL", backend.URL)

	_, _, err := executeCLI(t, home, "docs", "upload", filepath.Join(home, "missing.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error uploading document")
	assert.Equal(t, int64(0), backend.documents.Load())
}

func TestDocsClearDeclinedDoesNotCallServer(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t, 4)
	t.Setenv("DQ_SERVER_URL", backend.URL)

	stdout, stderr, err := executeCLIWithInput(t, home, "n\n", "docs", "clear")
	require.NoError(t, err)
	assert.Equal(t, "Cancelled.\n", stdout)
	assert.Contains(t, stderr, "Are you sure you want to clear all documents?")
	assert.Equal(t, int64(0), backend.clearCalls.Load())
	assert.Equal(t, int64(4), backend.documents.Load())
}

func TestDocsClearConfirmed(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t, 4)
	t.Setenv("DQ_SERVER_URL", backend.URL)

	stdout, _, err := executeCLIWithInput(t, home, "yes\n", "docs", "clear")
	require.NoError(t, err)
	assert.Equal(t, "🧹 All documents cleared\n", stdout)
	assert.Equal(t, int64(1), backend.clearCalls.Load())
}

func TestDocsClearYesFlagSkipsPrompt(t *testing.T) {
	home := t.TempDir()
	backend := newFakeBackend(t, 1)
	t.Setenv("DQ_SERVER_URL", backend.URL)

	_, stderr, err := executeCLI(t, home, "docs", "clear", "--yes")
	require.NoError(t, err)
	assert.NotContains(t, stderr, "Are you sure")
	assert.Equal(t, int64(1), backend.clearCalls.Load())
}

func TestConfigSetThenShow(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "config", "set", "voice.provider", "whisper")
	require.NoError(t, err)
	assert.Equal(t, "voice.provider = whisper\n", stdout)

	stdout, _, err = executeCLI(t, home, "config", "show", "voice.provider")
	require.NoError(t, err)
	assert.Equal(t, "whisper\n", stdout)

	stdout, _, err = executeCLI(t, home, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "server.url = http://127.0.0.1:5000\n")
	assert.Contains(t, stdout, "voice.provider = whisper\n")
	assert.Contains(t, stdout, "log.file = (unset)\n")

	data, err := os.ReadFile(filepath.Join(home, ".config", "dq", "config.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "whisper")
}

func TestConfigEnvironmentOverridesFile(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "config", "set", "server.url", "https://qa.internal.example")
	require.NoError(t, err)

	t.Setenv("DQ_SERVER_URL", "http://localhost:9000")
	stdout, _, err := executeCLI(t, home, "config", "show", "server.url")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000\n", stdout)
}

func TestConfigSetRejectsInvalidValues(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "config", "set", "voice.provider", "siri")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid voice.provider")

	_, _, err = executeCLI(t, home, "config", "set", "ui.theme", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setting not found")
}

func TestConfigFlagSelectsFile(t *testing.T) {
	home := t.TempDir()
	configPath := filepath.Join(t.TempDir(), "custom.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("[server]\nurl = \"http://custom:8080\"\n"), 0o600))

	stdout, _, err := executeCLI(t, home, "--config", configPath, "config", "show", "server.url")
	require.NoError(t, err)
	assert.Equal(t, "http://custom:8080\n", stdout)

	stdout, _, err = executeCLI(t, home, "--config", configPath, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, configPath+"\n", stdout)
}

func TestUnknownCommand(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "translate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command \"translate\"")
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	return executeCLIWithInput(t, home, "", args...)
}

func executeCLIWithInput(t *testing.T, home string, input string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)
	for _, name := range []string{"DQ_CONFIG", "DQ_API_KEY", "DQ_SECRET_SERVER", "DEEPGRAM_API_KEY", "OPENAI_API_KEY"} {
		if _, ok := os.LookupEnv(name); !ok {
			t.Setenv(name, "")
		}
	}

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetIn(io.Reader(strings.NewReader(input)))
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// onMethod restricts h to one HTTP method, answering 405 otherwise, so
// handlers can be registered on plain paths with the Go 1.21 ServeMux.
func onMethod(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}
