package generic

// Void is the empty value stored in sets.
type Void = struct{}
