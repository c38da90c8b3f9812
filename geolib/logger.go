package geolib

import "net"

type noopLogger struct{}

func (noopLogger) LookupError(net.IP, string, error) {}

func (noopLogger) ResolveInfo(*LocationRecord, string) {}

func (noopLogger) StorageError(string, error) {}

func (noopLogger) TriggerInfo(Trigger, string) {}
