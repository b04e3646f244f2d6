// Command cajactl drives a till against the caja server: status, open,
// movements, close and history.
package main

func main() {
	Execute()
}
