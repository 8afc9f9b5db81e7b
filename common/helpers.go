package common

import "os/user"

func IsRunningAsRoot() bool {
	usr, err := user.Current()
	return err == nil && usr.Username == "root"
}

// Fmap linearly maps x from [inMin, inMax] onto [outMin, outMax].
func Fmap(x, inMin, inMax, outMin, outMax float64) float64 {
	return (x-inMin)*(outMax-outMin)/(inMax-inMin) + outMin
}
