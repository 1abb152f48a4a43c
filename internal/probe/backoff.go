package probe

import "time"

// packetAllocation distributes count packets across retries+1 attempts.
// Each attempt gets max(1, count/(retries+1)) packets and the final attempt
// takes whatever remains, so the total never exceeds count. When count is
// smaller than the attempt budget, later attempts get nothing.
func packetAllocation(count, retries int) []int {
	if count < 1 {
		return nil
	}
	if retries < 0 {
		retries = 0
	}
	attempts := retries + 1
	per := count / attempts
	if per < 1 {
		per = 1
	}
	plan := make([]int, 0, attempts)
	total := 0
	for i := 0; i < attempts && total < count; i++ {
		n := per
		if i == attempts-1 || total+n > count {
			n = count - total
		}
		plan = append(plan, n)
		total += n
	}
	return plan
}

// escalate grows the per-packet timeout for the next attempt.
func escalate(timeout time.Duration, factor float64) time.Duration {
	if factor <= 1 {
		return timeout
	}
	return time.Duration(float64(timeout) * factor)
}
