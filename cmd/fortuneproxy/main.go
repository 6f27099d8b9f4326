// Fortuneproxy is an HTTP proxy in front of a hosted fortune-telling
// workflow.
//
// It accepts birth data from browser clients, validates it, runs the
// workflow with bounded retries and per-attempt deadlines, and returns a
// normalized result envelope. The workflow credential is resolved from
// the environment or a mounted secret file and never reaches the client.
//
// Usage:
//
//	# Start the proxy
//	fortuneproxy run --config /etc/fortuneproxy/config.yaml
//
//	# Check a configuration, including that the token resolves
//	fortuneproxy validate --check-token
//
//	# Run one reading from the terminal
//	fortuneproxy ask --name 张三 --gender male --place 北京 --date 1990-05-15 --time 14:30
//
//	# Show version information
//	fortuneproxy version
package main

func main() {
	Execute()
}
