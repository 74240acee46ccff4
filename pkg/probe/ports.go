package probe

// TopTCPPorts is the short well-known TCP list used by the async TCP probe
var TopTCPPorts = []string{
	"80", "23", "443", "21", "22", "25", "3389", "110", "445", "139",
	"143", "53", "135", "3306", "8080", "1723", "111", "995", "993", "5900",
}

// TopUDPPorts is the well-known UDP list used by the async UDP probe
var TopUDPPorts = []string{
	"7", "9", "17", "19", "49", "53", "67", "68", "69", "80", "88", "111", "120", "123", "135", "136", "137", "138",
	"139", "158", "161", "162", "177", "427", "443", "445", "497", "500", "514", "515", "518", "520", "593", "623",
	"626", "631", "996", "997", "998", "999", "1022", "1023", "1025", "1026", "1027", "1028", "1029", "1030",
	"1433", "1434", "1645", "1646", "1701", "1718", "1719", "1812", "1813", "1900", "2000", "2048", "2049",
	"2222", "2223", "3283", "3456", "3703", "4444", "4500", "5000", "5060", "5353", "5632", "9200", "10000",
	"17185", "20031", "30718", "31337", "32768", "32769", "32771", "32815", "33281", "49152", "49153",
	"49154", "49156", "49181", "49182", "49185", "49186", "49188", "49190", "49191", "49192", "49193",
	"49194", "49200", "49201", "65024",
}
