package shared

// Version of the module, stamped into log records by the example programs.
const Version = "0.1.0"
