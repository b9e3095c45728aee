package version

// Version is the current release of the beacon app
const Version = "0.1.0"
