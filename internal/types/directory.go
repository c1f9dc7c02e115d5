package types

// NamespaceInfo is the directory view of a namespace.
type NamespaceInfo struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// PodInfo is the directory view of a pod.
type PodInfo struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Namespace  string   `json:"namespace"`
	Status     string   `json:"status"`
	Restarts   int32    `json:"restarts"`
	Age        string   `json:"age"`
	Containers []string `json:"containers,omitempty"`
}
