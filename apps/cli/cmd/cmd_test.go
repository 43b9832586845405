package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/apicase/packages/core/runner"
	"github.com/abdul-hamid-achik/apicase/packages/metrics"
	"github.com/abdul-hamid-achik/apicase/packages/notify"
	"github.com/abdul-hamid-achik/apicase/packages/output"
	"github.com/abdul-hamid-achik/apicase/packages/stats"
)

func resetFlags() {
	envFileFlag, configFlag, nameFlag = "", "", ""
	verboseFlag, noColorFlag, dryRunFlag, watchFlag, insecureFlag = false, false, false, false, false
	timeoutFlag, outputFlag, outputFileFlag, proxyFlag, historyFlag = "", "", "", "", ""
	historyLimit, historyDBFlag = 20, ""
	metricsFlag, metricsFileFlag, metricsPortFlag = "", "", 0
	datadogAPIKeyFlag, datadogSiteFlag, datadogTagsFlag = "", "datadoghq.com", ""
	notifyFlag, notifyOnFlag, slackWebhookFlag, slackChannelFlag, teamsWebhookFlag = "", "failure", "", "", ""
	forceInit, initFormat = false, "yaml"
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	resetFlags()

	var outBuf, errBuf bytes.Buffer
	rootCmd.SetOut(&outBuf)
	rootCmd.SetErr(&errBuf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err = rootCmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func writeCases(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/created", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func caseBlock(name, method, url string, status int) string {
	return fmt.Sprintf("testcase: %s\nmethod: %s\nurl: %s\nstatuscode: %d\n", name, method, url, status)
}

func TestRun_AllPass(t *testing.T) {
	srv := newAPI(t)
	file := writeCases(t, t.TempDir(), "api.apicase",
		caseBlock("ok", "GET", srv.URL+"/ok", 200)+"---\n"+caseBlock("created", "POST", srv.URL+"/created", 201))

	out, _, err := execute(t, "run", file, "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "✅ Successfully passed test: \"ok\"")
	assert.Contains(t, out, "✅ Successfully passed test: \"created\"")
	assert.Contains(t, out, "Tests: 2 passed, 2 total")
}

func TestRun_StatusMismatch(t *testing.T) {
	srv := newAPI(t)
	file := writeCases(t, t.TempDir(), "api.apicase", caseBlock("ok", "GET", srv.URL+"/ok", 201))

	out, _, err := execute(t, "run", file, "--no-color")
	require.Error(t, err)
	assert.Equal(t, ExitTestFailure, exitCode(err))
	assert.Empty(t, err.Error())
	assert.Contains(t, out, "❌ Failed test: \"ok\", remarks: expected status code: 201, got: 200")
}

func TestRun_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	file := writeCases(t, t.TempDir(), "api.tc", caseBlock("down", "GET", url, 200))

	out, _, err := execute(t, "run", file, "--no-color", "--timeout", "2s")
	require.Error(t, err)
	assert.Equal(t, ExitNetworkError, exitCode(err))
	assert.Contains(t, out, "❌ Failed test: \"down\", remarks: failed due to error:")
}

func TestRun_ParseError(t *testing.T) {
	file := writeCases(t, t.TempDir(), "bad.apicase", "testcase: x\nmethod: FETCH\n")

	out, _, err := execute(t, "run", file, "--no-color")
	require.Error(t, err)
	assert.Equal(t, ExitParseError, exitCode(err))
	assert.Contains(t, out, "invalid method")
}

func TestRun_NoFiles(t *testing.T) {
	dir := t.TempDir()
	writeCases(t, dir, "notes.txt", "nothing")

	_, _, err := execute(t, "run", dir)
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))
}

func TestRun_UnknownOutput(t *testing.T) {
	srv := newAPI(t)
	file := writeCases(t, t.TempDir(), "api.apicase", caseBlock("ok", "GET", srv.URL+"/ok", 200))

	_, _, err := execute(t, "run", file, "-o", "html")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))

	_, _, err = execute(t, "run", file, "-o", "xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--output-file")
}

func TestRun_JSONOutputFile(t *testing.T) {
	srv := newAPI(t)
	dir := t.TempDir()
	file := writeCases(t, dir, "api.apicase",
		caseBlock("ok", "GET", srv.URL+"/ok", 200)+"---\n"+caseBlock("wrong", "GET", srv.URL+"/ok", 404))
	report := filepath.Join(dir, "report.json")

	_, _, err := execute(t, "run", file, "-o", "json", "--output-file", report)
	assert.Equal(t, ExitTestFailure, exitCode(err))

	data, err := os.ReadFile(report)
	require.NoError(t, err)

	var out output.JSONOutput
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, 2, out.Summary.Total)
	assert.Equal(t, 1, out.Summary.Passed)
	assert.Equal(t, 1, out.Summary.StatusMismatches)
}

func TestRun_NameFilter(t *testing.T) {
	srv := newAPI(t)
	file := writeCases(t, t.TempDir(), "api.apicase",
		caseBlock("get ok", "GET", srv.URL+"/ok", 200)+"---\n"+caseBlock("broken", "GET", srv.URL+"/ok", 500))

	out, _, err := execute(t, "run", file, "--no-color", "-n", "get*")
	require.NoError(t, err)
	assert.Contains(t, out, "\"get ok\"")
	assert.NotContains(t, out, "\"broken\"")
	assert.Contains(t, out, "1 skipped")
}

func TestRun_EnvFileVariables(t *testing.T) {
	srv := newAPI(t)
	dir := t.TempDir()
	envFile := writeCases(t, dir, ".env", "BASE_URL="+srv.URL+"\n")
	file := writeCases(t, dir, "api.apicase", caseBlock("ok", "GET", "{{BASE_URL}}/ok", 200))

	out, _, err := execute(t, "run", file, "--no-color", "--env-file", envFile)
	require.NoError(t, err)
	assert.Contains(t, out, "✅ Successfully passed test: \"ok\"")
}

func TestRun_ConfigVariables(t *testing.T) {
	srv := newAPI(t)
	dir := t.TempDir()
	cfg := writeCases(t, dir, "apicase.toml", fmt.Sprintf("[variables]\nbase = %q\n", srv.URL))
	file := writeCases(t, dir, "api.apicase", caseBlock("ok", "GET", "{{base}}/ok", 200))

	_, _, err := execute(t, "run", file, "--no-color", "--config", cfg)
	require.NoError(t, err)

	_, _, err = execute(t, "run", file, "--config", filepath.Join(dir, "missing.toml"))
	assert.Equal(t, ExitConfigError, exitCode(err))
}

func TestRun_DryRun(t *testing.T) {
	file := writeCases(t, t.TempDir(), "api.apicase", caseBlock("never sent", "DELETE", "http://127.0.0.1:1/x", 204))

	out, _, err := execute(t, "run", file, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Would run: "+file+" (1 cases)")
	assert.Contains(t, out, "DELETE http://127.0.0.1:1/x -> 204  never sent")
	assert.NotContains(t, out, "unresolved")
}

func TestRun_DryRunMatchesRunSelection(t *testing.T) {
	content := caseBlock("named", "GET", "http://x/a", 200) + "---\nmethod: GET\nurl: http://x/unnamed\nstatuscode: 200\n"
	file := writeCases(t, t.TempDir(), "api.apicase", content)

	out, _, err := execute(t, "run", file, "--dry-run", "--name", "*")
	require.NoError(t, err)
	assert.Contains(t, out, "(1 cases)")
	assert.Contains(t, out, "http://x/a")
	assert.NotContains(t, out, "http://x/unnamed")

	out, _, err = execute(t, "run", file, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "(2 cases)")
	assert.Contains(t, out, "http://x/unnamed")
}

func TestRun_DryRunReportsUnresolved(t *testing.T) {
	dir := t.TempDir()
	envFile := writeCases(t, dir, ".env", "base=http://x\n")
	content := "testcase: auth\nmethod: GET\nurl: {{base}}/me\nstatuscode: 200\nheaders:\n  Authorization: Bearer {{token}}\n"
	file := writeCases(t, dir, "api.apicase", content)

	out, _, err := execute(t, "run", file, "--dry-run", "--env-file", envFile)
	require.NoError(t, err)
	assert.Contains(t, out, "    unresolved: token\n")
}

func TestRun_MetricsJSONFile(t *testing.T) {
	srv := newAPI(t)
	dir := t.TempDir()
	file := writeCases(t, dir, "api.apicase",
		caseBlock("ok", "GET", srv.URL+"/ok", 200)+"---\n"+caseBlock("wrong", "GET", srv.URL+"/created", 200))
	metricsFile := filepath.Join(dir, "metrics.json")

	_, _, err := execute(t, "run", file, "--no-color", "--metrics", "json", "--metrics-file", metricsFile)
	assert.Equal(t, ExitTestFailure, exitCode(err))

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)

	var out metrics.JSONMetricsOutput
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, int64(2), out.Summary.TotalCases)
	assert.Equal(t, int64(1), out.Summary.StatusMismatches)
	assert.Equal(t, map[int]int64{200: 1, 201: 1}, out.Summary.StatusCodes)
	require.Len(t, out.Cases, 2)
	assert.Equal(t, metrics.KindStatusMismatch, out.Cases[1].Kind)
}

func TestRun_MetricsPrometheus(t *testing.T) {
	srv := newAPI(t)
	file := writeCases(t, t.TempDir(), "api.apicase", caseBlock("ok", "GET", srv.URL+"/ok", 200))

	out, _, err := execute(t, "run", file, "--no-color", "--metrics", "prometheus")
	require.NoError(t, err)
	assert.Contains(t, out, "apicase_cases_total 1\n")
	assert.Contains(t, out, `apicase_responses_by_status{status="200"} 1`)
}

func TestRun_MetricsAndNotifyUsage(t *testing.T) {
	file := writeCases(t, t.TempDir(), "api.apicase", caseBlock("ok", "GET", "http://x/", 200))

	for _, args := range [][]string{
		{"--metrics", "statsd"},
		{"--metrics", "datadog"},
		{"--notify", "slack"},
		{"--notify", "pager"},
		{"--notify", "teams", "--teams-webhook", "http://x", "--notify-on", "sometimes"},
	} {
		_, _, err := execute(t, append([]string{"run", file}, args...)...)
		assert.Equal(t, ExitUsageError, exitCode(err), "%v", args)
	}
}

func TestRun_NotifySlackOnFailure(t *testing.T) {
	srv := newAPI(t)
	var messages []map[string]any
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		messages = append(messages, msg)
	}))
	t.Cleanup(hook.Close)

	dir := t.TempDir()
	passing := writeCases(t, dir, "pass.apicase", caseBlock("ok", "GET", srv.URL+"/ok", 200))
	failing := writeCases(t, dir, "fail.tc", caseBlock("wrong", "GET", srv.URL+"/ok", 404))

	_, _, err := execute(t, "run", passing, "--no-color", "--notify", "slack", "--slack-webhook", hook.URL)
	require.NoError(t, err)
	assert.Empty(t, messages)

	_, _, err = execute(t, "run", failing, "--no-color", "--notify", "slack", "--slack-webhook", hook.URL, "--slack-channel", "#qa")
	assert.Equal(t, ExitTestFailure, exitCode(err))
	require.Len(t, messages, 1)
	assert.Equal(t, "#qa", messages[0]["channel"])
}

func TestRunOnce_ResetsSharedStats(t *testing.T) {
	srv := newAPI(t)
	file := writeCases(t, t.TempDir(), "api.apicase", caseBlock("ok", "GET", srv.URL+"/ok", 200))
	resetFlags()

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	notifier := &countingNotifier{}
	s := &runSettings{output: "console", noColor: true, runner: runner.Config{FollowRedirect: true}}
	sess := &session{
		runner:   runner.NewRunner(&s.runner),
		settings: s,
		stats:    stats.NewCollector(),
		metrics:  metrics.NewCollector(),
		notifier: notify.NewManager(notify.NotifyAlways, notifier),
	}

	for i := 0; i < 2; i++ {
		out.Reset()
		result, err := runOnce(context.Background(), cmd, []string{file}, sess)
		require.NoError(t, err)
		assert.NoError(t, result.err())
		assert.Contains(t, out.String(), "Cases:    1 passed, 0 failed, 0 skipped")
		assert.Equal(t, int64(1), sess.stats.Summary().Total)
		assert.Len(t, sess.metrics.Snapshot(sess.stats.Summary()).Cases, 1)
	}
	assert.Equal(t, 2, notifier.calls)
}

type countingNotifier struct{ calls int }

func (c *countingNotifier) Notify(*notify.RunSummary) error { c.calls++; return nil }
func (c *countingNotifier) Name() string                   { return "counting" }

func TestRunAndHistory(t *testing.T) {
	srv := newAPI(t)
	dir := t.TempDir()
	db := filepath.Join(dir, "history.db")
	file := writeCases(t, dir, "api.apicase", caseBlock("ok", "GET", srv.URL+"/ok", 200))

	_, stderr, err := execute(t, "run", file, "--no-color", "--history="+db)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Saved run ")

	out, _, err := execute(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "PASSED")
	assert.Contains(t, out, "ID")

	_, _, err = execute(t, "history", "--db", db, "no-such-run")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := writeCases(t, dir, "good.apicase", caseBlock("ok", "GET", "http://x", 200))

	out, _, err := execute(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "Valid: "+good)

	bad := writeCases(t, dir, "bad.apicase", "statuscode: abc\n")
	_, stderr, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitParseError, exitCode(err))
	assert.Contains(t, stderr, "Error in "+bad)
}

func TestList(t *testing.T) {
	content := `testcase: get user
description: fetch one user
author: qa
method: GET
url: http://x/users/1
statuscode: 200
headers:
  Accept: application/json
assertions:
  jsonPathExists: $.id
---
testcase: bare
method: GET
url: http://x/health
statuscode: 200
`
	file := writeCases(t, t.TempDir(), "users.apicase", content)

	out, _, err := execute(t, "list", file)
	require.NoError(t, err)
	assert.Contains(t, out, "  - get user\n")
	assert.Contains(t, out, "    GET http://x/users/1 -> 200\n")
	assert.Contains(t, out, "    description: fetch one user\n")
	assert.Contains(t, out, "    author: qa\n")
	assert.Contains(t, out, "    headers: 1, payload: 0, assertions: 1\n")
	assert.Contains(t, out, "  - bare\n    GET http://x/health -> 200\n    headers: 0, payload: 0, assertions: 0\n")
}

func TestInit(t *testing.T) {
	for _, format := range []string{"yaml", "json", "toml"} {
		t.Run(format, func(t *testing.T) {
			dir := t.TempDir()

			out, _, err := execute(t, "init", dir, "--format", format)
			require.NoError(t, err)
			assert.Contains(t, out, "apicase project initialized!")

			_, _, err = execute(t, "validate", filepath.Join(dir, "example.apicase"))
			require.NoError(t, err)

			_, _, err = execute(t, "init", dir, "--format", format)
			assert.Error(t, err)

			_, _, err = execute(t, "init", dir, "--format", format, "--force")
			assert.NoError(t, err)
		})
	}
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "apicase version dev")
}

func TestCompletion(t *testing.T) {
	out, _, err := execute(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "apicase")

	_, _, err = execute(t, "completion", "tcsh")
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, exitCode(nil))
	assert.Equal(t, ExitUsageError, exitCode(errors.New("unknown flag")))
	assert.Equal(t, ExitParseError, exitCode(withExitCode(ExitParseError, nil)))
	assert.Equal(t, ExitConfigError, exitCode(fmt.Errorf("wrapped: %w", exitf(ExitConfigError, "bad"))))
}
