// Package lastchange decodes UPnP "LastChange" event notifications.
//
// A GENA notification body is an XML property set whose LastChange element
// carries a second, entity-escaped XML document:
//
//	<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0">
//	  <e:property>
//	    <LastChange>&lt;Event xmlns="urn:schemas-upnp-org:metadata-1-0/AVT/"&gt;
//	      &lt;InstanceID val="0"&gt;&lt;TransportState val="PLAYING"/&gt;&lt;/InstanceID&gt;
//	    &lt;/Event&gt;</LastChange>
//	  </e:property>
//	</e:propertyset>
//
// Parse decodes both layers and flattens the first instance record into an
// AttributeSet keyed by local element name:
//
//	attrs, err := lastchange.Parse(body)
//	if err != nil {
//		return err
//	}
//	state, _ := attrs.Get("TransportState")
//
// Only the first instance record is returned by Parse. Devices that report
// several instances can be read with ParseAll.
package lastchange
