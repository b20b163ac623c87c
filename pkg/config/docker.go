package config

import (
	"os"
	"sync"
)

var inDocker = sync.OnceValue(func() bool {
	// Docker creates /.dockerenv in every container.
	_, err := os.Stat("/.dockerenv")
	return err == nil
})

// IsRunningInDocker reports whether the process is inside a Docker
// container. The check runs once and is cached.
func IsRunningInDocker() bool {
	return inDocker()
}

// ResolveHostForDocker rewrites loopback hosts to host.docker.internal
// when running inside a container, so a Postgres on the host machine
// stays reachable. Any other host passes through untouched.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}
	switch host {
	case "localhost", "127.0.0.1":
		return "host.docker.internal"
	}
	return host
}
