package dockercmd

// Tail constructs the continuous tail invocation for a container:
//
//	docker logs -f --tail <backlog> --timestamps <target>
//
// backlog bounds the initial history replayed before live lines begin.
func Tail(target string, backlog int) string {
	return NewBuilder().
		WithArg("logs").
		WithFlag("-f").
		WithIntFlag("--tail", backlog).
		WithFlag("--timestamps").
		WithArg(target).
		BuildString()
}

// History constructs the one-shot bounded-backlog invocation:
//
//	docker logs --tail <lines> --timestamps <target>
func History(target string, lines int) string {
	return NewBuilder().
		WithArg("logs").
		WithIntFlag("--tail", lines).
		WithFlag("--timestamps").
		WithArg(target).
		BuildString()
}

// Info constructs the registry-mirror inspection invocation used by the
// post-restart verification flow.
func Info() string {
	return NewBuilder().
		WithArg("info").
		WithStringFlag("--format", "{{json .RegistryConfig.Mirrors}}").
		BuildString()
}
