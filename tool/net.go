package tool

import (
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// QuickICMPProbe checks host reachability with a single unprivileged ping.
// Used to tell "host is down" apart from "service is down" when the instance
// goes silent; a false result is advisory only.
func QuickICMPProbe(host string, timeout time.Duration) bool {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return false
	}
	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(false)
	if err := pinger.Run(); err != nil {
		return false
	}
	return pinger.Statistics().PacketsRecv > 0
}
