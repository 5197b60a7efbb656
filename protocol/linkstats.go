package protocol

// LinkStatisticsSize is the payload size of a link statistics frame.
const LinkStatisticsSize = 10

// LinkStatistics is the decoded payload of a link statistics frame.
// Values are surfaced exactly as received; any smoothing or filtering
// is the consumer's responsibility.
type LinkStatistics struct {
	UplinkRSSIAnt1      uint8 // dBm * -1
	UplinkRSSIAnt2      uint8 // dBm * -1
	UplinkLinkQuality   uint8 // packet success rate, %
	UplinkSNR           int8  // dB
	ActiveAntenna       uint8
	RFMode              uint8 // packet-rate profile index
	UplinkTXPower       uint8 // transmit power enumeration
	DownlinkRSSI        uint8 // dBm * -1
	DownlinkLinkQuality uint8
	DownlinkSNR         int8 // dB
}

// DecodeLinkStatistics decodes the fixed link statistics payload
// layout. Payloads of the wrong size return false and leave s
// unchanged.
func DecodeLinkStatistics(payload []byte, s *LinkStatistics) bool {
	if len(payload) != LinkStatisticsSize {
		return false
	}
	s.UplinkRSSIAnt1 = payload[0]
	s.UplinkRSSIAnt2 = payload[1]
	s.UplinkLinkQuality = payload[2]
	s.UplinkSNR = int8(payload[3])
	s.ActiveAntenna = payload[4]
	s.RFMode = payload[5]
	s.UplinkTXPower = payload[6]
	s.DownlinkRSSI = payload[7]
	s.DownlinkLinkQuality = payload[8]
	s.DownlinkSNR = int8(payload[9])
	return true
}
