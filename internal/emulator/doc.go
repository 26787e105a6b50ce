// Package emulator manages Docker-provisioned Android (redroid) emulator
// containers so the automation module can run on hosts without a desktop
// emulator installed.
//
// The package wraps the Docker Engine SDK client with automatic socket
// detection and keeps all instance state in container labels — there is no
// external state file. Each instance publishes the container's ADB port
// (5555/tcp) on a loopback host port allocated on the BlueStacks-style
// ladder (5555, 5565, 5575, ...), which is exactly the port range the
// device package's "auto" probe expects.
package emulator
