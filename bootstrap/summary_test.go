package bootstrap

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kbukum/injectkit/component"
	"github.com/kbukum/injectkit/di"
)

type Greeter interface{ Greet() string }

type englishGreeter struct{ name string }

func (g *englishGreeter) Greet() string { return "hello " + g.name }

func newEnglishGreeter(name string) *englishGreeter { return &englishGreeter{name: name} }

func init() {
	color.NoColor = true
}

func summaryApp(t *testing.T, buf *bytes.Buffer) *App[*testConfig] {
	t.Helper()
	cfg := newTestConfig("summary-svc")
	cfg.Summary = true
	app := newTestApp(t, cfg, WithOutput(buf), WithVersion("2.0.0"))
	app.Install(
		di.Bind(di.Named[string]("name"), di.ToInstance("bob"), di.WithSource("greeting.go:10")),
		di.Bind(di.KeyOf[*englishGreeter](), di.ToConstructor(newEnglishGreeter, di.Param(0, "name")), di.AsEagerSingleton()),
		di.Bind(di.KeyOf[Greeter](), di.ToKey(di.KeyOf[*englishGreeter]())),
		di.Bind(di.KeyOf[*mockComponent](), di.ToInstance(healthyComponent("db"))),
	)
	return app
}

func TestSummaryDisplayedAfterStartup(t *testing.T) {
	var buf bytes.Buffer
	app := summaryApp(t, &buf)

	require.NoError(t, app.RunTask(context.Background(), func(context.Context) error { return nil }))

	out := buf.String()
	assert.Contains(t, out, "summary-svc v2.0.0 started in")
	assert.Contains(t, out, "(development stage)")
	assert.Contains(t, out, "string@name instance [unscoped]")
	assert.Contains(t, out, "greeting.go:10")
	assert.Contains(t, out, "*bootstrap.englishGreeter constructor [singleton]")
	assert.Contains(t, out, "eager")
	assert.Contains(t, out, "bootstrap.Greeter linked [unscoped] → *bootstrap.englishGreeter")
	assert.Contains(t, out, "✅ db: healthy")
	assert.Contains(t, out, "All components healthy (1/1)")
}

func TestSummaryNotDisplayedWhenDisabled(t *testing.T) {
	var buf bytes.Buffer
	app := newTestApp(t, newTestConfig("quiet"), WithOutput(&buf))
	require.NoError(t, app.RunTask(context.Background(), func(context.Context) error { return nil }))
	assert.Empty(t, buf.String())
}

func TestSummaryDisplayUnhealthy(t *testing.T) {
	var buf bytes.Buffer
	s := NewSummary("svc", "1.0.0")
	s.SetStartupDuration(1500 * time.Millisecond)
	s.Display(&buf, &Report{
		Stage: "production",
		Components: []component.Health{
			{Name: "db", Status: component.StatusHealthy},
			{Name: "cache", Status: component.StatusUnhealthy, Message: "connection refused"},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "svc v1.0.0 started in 1.50s (production stage)")
	assert.Contains(t, out, "└── No bindings declared")
	assert.Contains(t, out, "❌ cache: unhealthy — connection refused")
	assert.Contains(t, out, "Some components have issues (1/2 healthy)")
}

func TestTreePrefix(t *testing.T) {
	assert.Equal(t, "├──", treePrefix(0, 3))
	assert.Equal(t, "├──", treePrefix(1, 3))
	assert.Equal(t, "└──", treePrefix(2, 3))
	assert.Equal(t, "└──", treePrefix(0, 1))
}

func TestHealthStatusIcon(t *testing.T) {
	tests := []struct {
		status component.HealthStatus
		want   string
	}{
		{component.StatusHealthy, "✅"},
		{component.StatusDegraded, "⚠️"},
		{component.StatusUnhealthy, "❌"},
		{"unknown", "❓"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, healthStatusIcon(tc.status))
	}
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	app := summaryApp(t, &buf)
	assert.Nil(t, app.Report(context.Background()))

	require.NoError(t, app.Build(context.Background()))
	require.NoError(t, app.Injector.Start(context.Background()))
	defer app.Injector.Stop(context.Background())

	r := app.Report(context.Background())
	require.NotNil(t, r)
	assert.Equal(t, "summary-svc", r.Name)
	assert.Equal(t, "2.0.0", r.Version)
	assert.Equal(t, "development", r.Stage)
	require.NotNil(t, r.Build)

	byKey := make(map[string]BindingInfo, len(r.Bindings))
	for _, b := range r.Bindings {
		byKey[b.Key] = b
	}
	greeter := byKey["*bootstrap.englishGreeter"]
	assert.Equal(t, "constructor", greeter.Kind)
	assert.Equal(t, "singleton", greeter.Scope)
	assert.True(t, greeter.Eager)
	assert.Equal(t, []string{"string@name"}, greeter.Dependencies)
	assert.Equal(t, "*bootstrap.englishGreeter", byKey["bootstrap.Greeter"].Target)
	assert.Contains(t, byKey, "*bootstrap.testConfig")
	assert.Contains(t, byKey, "*config.Config")
	require.Len(t, r.Components, 1)
	assert.Equal(t, "db", r.Components[0].Name)

	out, err := r.YAML()
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(out, &doc))
	assert.Equal(t, "summary-svc", doc["name"])
	assert.Contains(t, string(out), "  - key: string@name\n    kind: instance\n")
}
