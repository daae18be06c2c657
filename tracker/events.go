package tracker

import (
	"github.com/0xPolygon/txtrace/registry"
	"github.com/0xPolygon/txtrace/trace"
	"github.com/umbracle/ethgo"
)

// Event is one decoded (or undecodable) log emitted by a transaction
type Event struct {
	// Name is empty when the emitting contract or event signature is unknown
	Name    string
	Address ethgo.Address
	Args    map[string]interface{}

	// raw log fields, kept for events that could not be decoded
	Topics []ethgo.Hash
	Data   []byte
}

// decodeLogs resolves each log's emitting contract through the registry and
// decodes the ones whose event signature the contract ABI knows. Logs that
// cannot be decoded are kept in raw form.
func decodeLogs(reg registry.Registry, logs []*ethgo.Log) []*Event {
	events := make([]*Event, 0, len(logs))

	for _, log := range logs {
		event := &Event{
			Address: log.Address,
			Topics:  log.Topics,
			Data:    log.Data,
		}

		contract, err := reg.GetContract(log.Address)
		if err == nil && contract != nil && contract.Abi != nil {
			for _, abiEvent := range contract.Abi.Events {
				if !abiEvent.Match(log) {
					continue
				}

				if args, err := abiEvent.ParseLog(log); err == nil {
					event.Name = abiEvent.Name
					event.Args = args
				}

				break
			}
		}

		events = append(events, event)
	}

	return events
}

// traceLogs converts the raw LOG records collected during trace expansion
// into the receipt log shape so both paths share one decoder
func traceLogs(raw []*trace.RawLog) []*ethgo.Log {
	logs := make([]*ethgo.Log, 0, len(raw))

	for _, r := range raw {
		logs = append(logs, &ethgo.Log{
			Address: r.Address,
			Topics:  r.Topics,
			Data:    r.Data,
		})
	}

	return logs
}
