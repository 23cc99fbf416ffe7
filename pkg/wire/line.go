package wire

import "fmt"

// FormatLine renders one sample in the streaming line format
// "patientId,timestamp,label,data" used by the TCP and WebSocket outputs.
func FormatLine(patientID int, timestamp int64, label, data string) string {
	return fmt.Sprintf("%d,%d,%s,%s", patientID, timestamp, label, data)
}

// FormatFileLine renders one sample in the file output format.
func FormatFileLine(patientID int, timestamp int64, label, data string) string {
	return fmt.Sprintf("Patient ID: %d, Timestamp: %d, Label: %s, Data: %s", patientID, timestamp, label, data)
}
