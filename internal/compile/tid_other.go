//go:build !linux

package compile

func gettid() int {
	return 0
}
